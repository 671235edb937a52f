package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

// AffinityWeight returns acceptance_count/total_assignments for the pair, or
// 0 when there is no record or the store is unavailable.
func (s *PostgresStore) AffinityWeight(ctx context.Context, imageHash, theme string) float64 {
	if imageHash == "" || theme == "" || !s.ready(ctx) {
		return 0
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT acceptance_count, total_assignments
	          FROM clip_image_theme_feedback
	          WHERE image_hash = $1 AND theme = $2
	          LIMIT 1`

	rec := domain.FeedbackRecord{ImageHash: imageHash, Theme: theme}
	err := s.db.QueryRowContext(ctx, query, imageHash, theme).Scan(&rec.AcceptanceCount, &rec.TotalAssignments)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	}
	if err != nil {
		s.fail("get affinity weight", err)
		return 0
	}
	return rec.AffinityWeight()
}

// RecordFeedback creates the counter row or increments it in a single
// statement, so concurrent events for the same pair are all counted.
func (s *PostgresStore) RecordFeedback(ctx context.Context, event domain.FeedbackEvent) error {
	if event.ImageHash == "" || event.Theme == "" {
		return port.ErrInvalidFeedback
	}
	if !s.ready(ctx) {
		return port.ErrStoreUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	accepted := 0
	if event.Accepted {
		accepted = 1
	}

	query := `INSERT INTO clip_image_theme_feedback (image_hash, theme, asset_id, acceptance_count, total_assignments)
	          VALUES ($1, $2, $3, $4, 1)
	          ON CONFLICT (image_hash, theme) DO UPDATE SET
	              asset_id = COALESCE(EXCLUDED.asset_id, clip_image_theme_feedback.asset_id),
	              acceptance_count = clip_image_theme_feedback.acceptance_count + EXCLUDED.acceptance_count,
	              total_assignments = clip_image_theme_feedback.total_assignments + 1,
	              updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, event.ImageHash, event.Theme, nullString(event.AssetID), accepted)
	if err != nil {
		s.fail("record feedback", err)
		return fmt.Errorf("record feedback: %w: %w", port.ErrStoreUnavailable, err)
	}
	return nil
}
