package domain

import "time"

// ImageEmbedding is a cached image vector, unique per (ImageHash, ModelName).
type ImageEmbedding struct {
	ImageHash string    `json:"image_hash" db:"image_hash"` // 64-char hex SHA-256 of the image bytes
	ModelName string    `json:"model_name" db:"model_name"`
	AssetID   string    `json:"asset_id"   db:"asset_id"`
	Vector    []float32 `json:"-"          db:"embedding"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LabelEmbedding is a cached text vector, unique per (ModelName, Label).
type LabelEmbedding struct {
	ModelName string    `json:"model_name" db:"model_name"`
	Label     string    `json:"label"      db:"label"`
	Vector    []float32 `json:"-"          db:"embedding"`
}

// SimilarImage is a near-duplicate candidate returned by similarity search.
type SimilarImage struct {
	ImageHash  string  `json:"image_hash"`
	AssetID    *string `json:"asset_id"`
	Similarity float64 `json:"similarity"`
}
