package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
)

// GetExpansion returns the raw JSON payload stored under cacheKey.
func (s *PostgresStore) GetExpansion(ctx context.Context, cacheKey string) ([]byte, bool) {
	if cacheKey == "" || !s.ready(ctx) {
		return nil, false
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT expansion::text FROM clip_label_expansion_cache WHERE cache_key = $1 LIMIT 1`

	var raw string
	err := s.db.QueryRowContext(ctx, query, cacheKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.fail("get label expansion", err)
		return nil, false
	}
	return []byte(raw), true
}

// SaveExpansion upserts the payload for cacheKey; the latest write wins.
func (s *PostgresStore) SaveExpansion(ctx context.Context, cacheKey, modelName string, topLabels []string, expansion domain.Expansion) {
	if cacheKey == "" || !s.ready(ctx) {
		return
	}

	labelsJSON, err := json.Marshal(topLabels)
	if err != nil {
		return
	}
	expansionJSON, err := json.Marshal(expansion)
	if err != nil {
		return
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `INSERT INTO clip_label_expansion_cache (cache_key, model_name, top_labels, expansion)
	          VALUES ($1, $2, $3::jsonb, $4::jsonb)
	          ON CONFLICT (cache_key) DO UPDATE SET
	              model_name = EXCLUDED.model_name,
	              top_labels = EXCLUDED.top_labels,
	              expansion = EXCLUDED.expansion,
	              updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, cacheKey, modelName, string(labelsJSON), string(expansionJSON)); err != nil {
		s.fail("save label expansion", err)
	}
}
