package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
)

// Bounds applied to ListImageEmbeddings.
const (
	MinScanLimit     = 50
	MaxScanLimit     = 20000
	DefaultScanLimit = 3000
)

// GetImageEmbedding returns the cached vector for (imageHash, modelName).
func (s *PostgresStore) GetImageEmbedding(ctx context.Context, imageHash, modelName string) ([]float32, bool) {
	if imageHash == "" || !s.ready(ctx) {
		return nil, false
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT embedding_dim, embedding
	          FROM clip_image_embedding_cache
	          WHERE image_hash = $1 AND model_name = $2
	          LIMIT 1`

	var (
		dim int
		vec pgvector.Vector
	)
	err := s.db.QueryRowContext(ctx, query, imageHash, modelName).Scan(&dim, &vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.fail("get image embedding", err)
		return nil, false
	}

	v := checkedVector(vec, dim)
	return v, v != nil
}

// SaveImageEmbedding upserts an image vector. The latest write wins,
// including its asset id.
func (s *PostgresStore) SaveImageEmbedding(ctx context.Context, e domain.ImageEmbedding) {
	if e.ImageHash == "" || len(e.Vector) == 0 || !s.ready(ctx) {
		return
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `INSERT INTO clip_image_embedding_cache (image_hash, model_name, asset_id, embedding_dim, embedding)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (image_hash, model_name) DO UPDATE SET
	              asset_id = EXCLUDED.asset_id,
	              embedding_dim = EXCLUDED.embedding_dim,
	              embedding = EXCLUDED.embedding,
	              updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		e.ImageHash, e.ModelName, nullString(e.AssetID), len(e.Vector), pgvector.NewVector(e.Vector),
	)
	if err != nil {
		s.fail("save image embedding", err)
	}
}

// GetLabelEmbeddings returns the cached vectors for the given labels. Labels
// without a usable row are absent from the map.
func (s *PostgresStore) GetLabelEmbeddings(ctx context.Context, modelName string, labels []string) map[string][]float32 {
	out := make(map[string][]float32)
	if len(labels) == 0 || !s.ready(ctx) {
		return out
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT label, embedding_dim, embedding
	          FROM clip_label_embedding_cache
	          WHERE model_name = $1 AND label = ANY($2)`

	rows, err := s.db.QueryContext(ctx, query, modelName, pq.Array(labels))
	if err != nil {
		s.fail("get label embeddings", err)
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var (
			label string
			dim   int
			vec   pgvector.Vector
		)
		if err := rows.Scan(&label, &dim, &vec); err != nil {
			s.fail("scan label embedding", err)
			return map[string][]float32{}
		}
		if v := checkedVector(vec, dim); label != "" && v != nil {
			out[label] = v
		}
	}
	if err := rows.Err(); err != nil {
		s.fail("iterate label embeddings", err)
		return map[string][]float32{}
	}
	return out
}

// SaveLabelEmbeddings upserts a batch of label vectors in one transaction.
func (s *PostgresStore) SaveLabelEmbeddings(ctx context.Context, modelName string, vectors map[string][]float32) {
	if len(vectors) == 0 || !s.ready(ctx) {
		return
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	// Sorted so concurrent batches lock rows in the same order.
	labels := make([]string, 0, len(vectors))
	for label, v := range vectors {
		if label != "" && len(v) > 0 {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return
	}
	sort.Strings(labels)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.fail("begin label batch", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO clip_label_embedding_cache (model_name, label, embedding_dim, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (model_name, label) DO UPDATE SET
		     embedding_dim = EXCLUDED.embedding_dim,
		     embedding = EXCLUDED.embedding,
		     updated_at = NOW()`)
	if err != nil {
		s.fail("prepare label batch", err)
		return
	}
	defer stmt.Close()

	for _, label := range labels {
		v := vectors[label]
		if _, err := stmt.ExecContext(ctx, modelName, label, len(v), pgvector.NewVector(v)); err != nil {
			s.fail("insert label embedding", err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.fail("commit label batch", err)
	}
}

// ListImageEmbeddings returns the most recently updated image vectors for a
// model, newest first. scanLimit is clamped to [MinScanLimit, MaxScanLimit].
func (s *PostgresStore) ListImageEmbeddings(ctx context.Context, modelName string, scanLimit int) []domain.ImageEmbedding {
	if !s.ready(ctx) {
		return nil
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT image_hash, asset_id, embedding_dim, embedding, updated_at
	          FROM clip_image_embedding_cache
	          WHERE model_name = $1
	          ORDER BY updated_at DESC
	          LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, modelName, ClampScanLimit(scanLimit))
	if err != nil {
		s.fail("list image embeddings", err)
		return nil
	}
	defer rows.Close()

	var out []domain.ImageEmbedding
	for rows.Next() {
		var (
			e       domain.ImageEmbedding
			assetID sql.NullString
			dim     int
			vec     pgvector.Vector
		)
		if err := rows.Scan(&e.ImageHash, &assetID, &dim, &vec, &e.UpdatedAt); err != nil {
			s.fail("scan image embedding", err)
			return nil
		}
		if e.ImageHash == "" {
			continue
		}
		e.ModelName = modelName
		e.AssetID = assetID.String
		// Invalid rows keep a nil vector; the similarity scan skips them.
		e.Vector = checkedVector(vec, dim)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		s.fail("iterate image embeddings", err)
		return nil
	}
	return out
}

// ClampScanLimit bounds a scan limit, mapping non-positive values to the default.
func ClampScanLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	return max(MinScanLimit, min(limit, MaxScanLimit))
}

// checkedVector returns the slice only when its length matches the stored
// dimension.
func checkedVector(vec pgvector.Vector, dim int) []float32 {
	v := vec.Slice()
	if len(v) == 0 || len(v) != dim {
		return nil
	}
	return v
}
