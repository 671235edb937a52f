package store

// schemaStatements are executed in order, once per process, on first use.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS clip_image_embedding_cache (
		image_hash    CHAR(64)     NOT NULL,
		model_name    VARCHAR(80)  NOT NULL,
		asset_id      VARCHAR(64),
		embedding_dim SMALLINT     NOT NULL,
		embedding     vector       NOT NULL,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		PRIMARY KEY (image_hash, model_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clip_image_embedding_model_updated
		ON clip_image_embedding_cache (model_name, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_clip_image_embedding_asset_id
		ON clip_image_embedding_cache (asset_id)`,

	`CREATE TABLE IF NOT EXISTS clip_label_embedding_cache (
		model_name    VARCHAR(80)  NOT NULL,
		label         VARCHAR(191) NOT NULL,
		embedding_dim SMALLINT     NOT NULL,
		embedding     vector       NOT NULL,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		PRIMARY KEY (model_name, label)
	)`,

	`CREATE TABLE IF NOT EXISTS clip_label_expansion_cache (
		cache_key  CHAR(64)    NOT NULL PRIMARY KEY,
		model_name VARCHAR(80) NOT NULL,
		top_labels JSONB       NOT NULL,
		expansion  JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS clip_image_theme_feedback (
		image_hash        CHAR(64)     NOT NULL,
		theme             VARCHAR(120) NOT NULL,
		asset_id          VARCHAR(64),
		acceptance_count  INTEGER      NOT NULL DEFAULT 0 CHECK (acceptance_count >= 0),
		total_assignments INTEGER      NOT NULL DEFAULT 0 CHECK (total_assignments >= 0),
		created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		PRIMARY KEY (image_hash, theme)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clip_feedback_asset_id ON clip_image_theme_feedback (asset_id)`,
	`CREATE INDEX IF NOT EXISTS idx_clip_feedback_theme ON clip_image_theme_feedback (theme)`,
}
