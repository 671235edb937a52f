package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

// EmbeddingService resolves image and label embeddings through an in-process
// label memo, the persistent cache and finally the encoder.
type EmbeddingService struct {
	encoder      port.VisionEncoder
	cache        port.EmbeddingCache
	metrics      *metrics.Metrics
	cacheEnabled bool

	mu   sync.Mutex
	memo map[string][]float32 // keyed by memoKey(model, label)
}

// NewEmbeddingService creates a new embedding service. With cacheEnabled off
// the persistent cache is never consulted; the label memo is always used.
func NewEmbeddingService(encoder port.VisionEncoder, cache port.EmbeddingCache, m *metrics.Metrics, cacheEnabled bool) *EmbeddingService {
	return &EmbeddingService{
		encoder:      encoder,
		cache:        cache,
		metrics:      m,
		cacheEnabled: cacheEnabled && cache != nil,
		memo:         make(map[string][]float32),
	}
}

// ModelName returns the encoder model identifier.
func (s *EmbeddingService) ModelName() string {
	return s.encoder.ModelName()
}

// ImageEmbedding returns the embedding for image, reading and populating the
// persistent cache when imageHash is set.
func (s *EmbeddingService) ImageEmbedding(ctx context.Context, image []byte, imageHash, assetID string) ([]float32, error) {
	model := s.encoder.ModelName()
	useCache := s.cacheEnabled && imageHash != ""

	if useCache {
		v, ok := s.cache.GetImageEmbedding(ctx, imageHash, model)
		s.metrics.ObserveCache(metrics.CacheImage, ok && len(v) > 0)
		if ok && len(v) > 0 {
			return v, nil
		}
	}

	v, err := s.encoder.EncodeImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	if useCache {
		s.cache.SaveImageEmbedding(ctx, domain.ImageEmbedding{
			ImageHash: imageHash,
			ModelName: model,
			AssetID:   assetID,
			Vector:    v,
		})
	}
	return v, nil
}

// LabelEmbeddings returns one vector per label. Vectors whose length differs
// from dim are treated as misses and recomputed; dim <= 0 accepts any length.
func (s *EmbeddingService) LabelEmbeddings(ctx context.Context, labels []string, dim int) (map[string][]float32, error) {
	model := s.encoder.ModelName()
	usable := func(v []float32) bool {
		return len(v) > 0 && (dim <= 0 || len(v) == dim)
	}

	out := make(map[string][]float32, len(labels))
	var missing []string

	// 1. Process-local memo
	s.mu.Lock()
	for _, label := range labels {
		if v, ok := s.memo[memoKey(model, label)]; ok && usable(v) {
			out[label] = v
		} else {
			missing = append(missing, label)
		}
	}
	s.mu.Unlock()
	for range out {
		s.metrics.ObserveCache(metrics.CacheLabelMemo, true)
	}
	for range missing {
		s.metrics.ObserveCache(metrics.CacheLabelMemo, false)
	}

	// 2. Persistent cache
	if len(missing) > 0 && s.cacheEnabled {
		persisted := s.cache.GetLabelEmbeddings(ctx, model, missing)
		remaining := missing[:0]
		for _, label := range missing {
			if v, ok := persisted[label]; ok && usable(v) {
				out[label] = v
				s.metrics.ObserveCache(metrics.CacheLabel, true)
				continue
			}
			s.metrics.ObserveCache(metrics.CacheLabel, false)
			remaining = append(remaining, label)
		}
		missing = remaining
	}

	// 3. Encoder
	if len(missing) > 0 {
		vectors, err := s.encoder.EncodeText(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("encode labels: %w", err)
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("encode labels: %w: got %d vectors for %d labels",
				port.ErrEncoderFailed, len(vectors), len(missing))
		}

		computed := make(map[string][]float32, len(missing))
		for i, label := range missing {
			if !usable(vectors[i]) {
				return nil, fmt.Errorf("encode labels: %w: label %q has dimension %d, image has %d",
					port.ErrEncoderFailed, label, len(vectors[i]), dim)
			}
			computed[label] = vectors[i]
			out[label] = vectors[i]
		}
		if s.cacheEnabled {
			s.cache.SaveLabelEmbeddings(ctx, model, computed)
		}
	}

	s.mu.Lock()
	for label, v := range out {
		s.memo[memoKey(model, label)] = v
	}
	s.mu.Unlock()

	return out, nil
}

func memoKey(model, label string) string {
	return model + "\x00" + label
}
