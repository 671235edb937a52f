package service

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
	"github.com/arturoeanton/go-clip-classifier/internal/vecmath"
)

// Similarity search bounds.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultSimilarityLimit     = 25
	MaxSimilarityLimit         = 100
	DefaultScanLimit           = 3000
	MinScanLimit               = 100
	MaxScanLimit               = 20000
)

// SimilarityQuery describes one near-duplicate search.
type SimilarityQuery struct {
	Vector      []float32
	ModelName   string
	Threshold   float64
	Limit       int    // clamped to [1, MaxSimilarityLimit]; 0 selects the default
	ScanLimit   int    // clamped to [MinScanLimit, MaxScanLimit]; 0 selects the default
	ExcludeHash string // the query's own hash
}

// SimilarityService finds previously seen images close to a query embedding
// by scanning the most recent cached embeddings.
type SimilarityService struct {
	cache   port.EmbeddingCache
	metrics *metrics.Metrics
}

// NewSimilarityService creates a new similarity service.
func NewSimilarityService(cache port.EmbeddingCache, m *metrics.Metrics) *SimilarityService {
	return &SimilarityService{cache: cache, metrics: m}
}

// FindSimilar returns candidates with similarity >= q.Threshold, highest
// first, ties broken by image hash. The result is never nil.
func (s *SimilarityService) FindSimilar(ctx context.Context, q SimilarityQuery) []domain.SimilarImage {
	hits := s.findSimilar(ctx, q)
	s.metrics.ObserveSimilar(len(hits))
	return hits
}

func (s *SimilarityService) findSimilar(ctx context.Context, q SimilarityQuery) []domain.SimilarImage {
	hits := []domain.SimilarImage{}
	if len(q.Vector) == 0 || s.cache == nil || math.IsNaN(q.Threshold) {
		return hits
	}

	rows := s.cache.ListImageEmbeddings(ctx, q.ModelName, clampInt(q.ScanLimit, DefaultScanLimit, MinScanLimit, MaxScanLimit))
	if len(rows) == 0 {
		return hits
	}

	candidates := make([]domain.ImageEmbedding, 0, len(rows))
	vectors := make([][]float32, 0, len(rows))
	for _, row := range rows {
		if q.ExcludeHash != "" && row.ImageHash == q.ExcludeHash {
			continue
		}
		if len(row.Vector) == 0 || len(row.Vector) != len(q.Vector) {
			continue
		}
		candidates = append(candidates, row)
		vectors = append(vectors, row.Vector)
	}
	if len(vectors) == 0 {
		return hits
	}

	scores, err := vecmath.CosineSimilarityMatrix([][]float32{q.Vector}, vectors)
	if err != nil {
		// Unreachable after the length filter above.
		slog.Error("similarity scan", "error", err)
		return hits
	}

	for i, score := range scores[0] {
		if score < q.Threshold {
			continue
		}
		hit := domain.SimilarImage{
			ImageHash:  candidates[i].ImageHash,
			Similarity: round6(score),
		}
		if id := candidates[i].AssetID; id != "" {
			hit.AssetID = &id
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ImageHash < hits[j].ImageHash
	})

	if limit := clampInt(q.Limit, DefaultSimilarityLimit, 1, MaxSimilarityLimit); len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// clampInt maps non-positive v to def and bounds the result to [lo, hi].
func clampInt(v, def, lo, hi int) int {
	if v <= 0 {
		v = def
	}
	return max(lo, min(v, hi))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
