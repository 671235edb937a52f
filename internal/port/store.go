package port

import (
	"context"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
)

// EmbeddingCache persists image and label embeddings. Implementations fail
// open: backend problems read as misses and writes become no-ops.
type EmbeddingCache interface {
	GetImageEmbedding(ctx context.Context, imageHash, modelName string) ([]float32, bool)
	SaveImageEmbedding(ctx context.Context, e domain.ImageEmbedding)
	GetLabelEmbeddings(ctx context.Context, modelName string, labels []string) map[string][]float32
	SaveLabelEmbeddings(ctx context.Context, modelName string, vectors map[string][]float32)
	ListImageEmbeddings(ctx context.Context, modelName string, scanLimit int) []domain.ImageEmbedding
}

// FeedbackStore accumulates per-(image, theme) acceptance statistics.
type FeedbackStore interface {
	// AffinityWeight returns acceptance/total in [0,1], or 0 when unknown.
	AffinityWeight(ctx context.Context, imageHash, theme string) float64

	// RecordFeedback atomically increments the counters for the event.
	// It returns ErrStoreUnavailable when the event could not be persisted.
	RecordFeedback(ctx context.Context, event domain.FeedbackEvent) error
}

// ExpansionStore persists label enrichment payloads by cache key.
type ExpansionStore interface {
	GetExpansion(ctx context.Context, cacheKey string) ([]byte, bool)
	SaveExpansion(ctx context.Context, cacheKey, modelName string, topLabels []string, expansion domain.Expansion)
}
