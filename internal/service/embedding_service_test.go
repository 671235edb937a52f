package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

func TestLabelEmbeddings_TiersInOrder(t *testing.T) {
	enc := newFakeEncoder()
	store := newFakeStore()
	store.SaveLabelEmbeddings(context.Background(), "test-clip", map[string][]float32{"dog": {0, 1, 0}})
	m := metrics.New(prometheus.NewRegistry())
	svc := NewEmbeddingService(enc, store, m, true)

	got, err := svc.LabelEmbeddings(context.Background(), []string{"cat", "dog"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got["cat"])
	assert.Equal(t, []float32{0, 1, 0}, got["dog"])
	assert.Equal(t, [][]string{{"cat"}}, enc.textLabels)

	// Computed vectors are written through to the persistent tier.
	persisted := store.GetLabelEmbeddings(context.Background(), "test-clip", []string{"cat"})
	assert.Equal(t, []float32{1, 0, 0}, persisted["cat"])

	// Second call is served entirely by the memo.
	readsBefore := store.labelReads.Load()
	_, err = svc.LabelEmbeddings(context.Background(), []string{"cat", "dog"}, 3)
	require.NoError(t, err)
	assert.Equal(t, readsBefore, store.labelReads.Load())
	assert.Equal(t, int32(1), enc.textCalls.Load())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.CacheLabelMemo, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.CacheLabel, "hit")))
}

func TestLabelEmbeddings_DimensionMismatchRecomputes(t *testing.T) {
	enc := newFakeEncoder()
	store := newFakeStore()
	store.SaveLabelEmbeddings(context.Background(), "test-clip", map[string][]float32{"cat": {1, 0}})
	svc := NewEmbeddingService(enc, store, nil, true)

	got, err := svc.LabelEmbeddings(context.Background(), []string{"cat"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got["cat"])
	assert.Equal(t, int32(1), enc.textCalls.Load())
}

func TestLabelEmbeddings_CacheDisabled(t *testing.T) {
	enc := newFakeEncoder()
	store := newFakeStore()
	svc := NewEmbeddingService(enc, store, nil, false)

	_, err := svc.LabelEmbeddings(context.Background(), []string{"cat", "dog"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), store.labelReads.Load())
	assert.Empty(t, store.labels)
}

func TestImageEmbedding_CacheRoundTrip(t *testing.T) {
	enc := newFakeEncoder()
	store := newFakeStore()
	svc := NewEmbeddingService(enc, store, nil, true)

	v, err := svc.ImageEmbedding(context.Background(), []byte("img"), "h1", "asset-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, v)
	assert.Equal(t, domain.ImageEmbedding{ImageHash: "h1", ModelName: "test-clip", AssetID: "asset-1", Vector: []float32{1, 0, 0}},
		store.images["h1|test-clip"])

	_, err = svc.ImageEmbedding(context.Background(), []byte("img"), "h1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), enc.imageCalls.Load())
}

func TestImageEmbedding_NoHashSkipsCache(t *testing.T) {
	enc := newFakeEncoder()
	store := newFakeStore()
	svc := NewEmbeddingService(enc, store, nil, true)

	_, err := svc.ImageEmbedding(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, int32(0), store.imageReads.Load())
	assert.Empty(t, store.images)
}

func TestLabelEmbeddings_MemoKeyedByModel(t *testing.T) {
	enc := newFakeEncoder()
	svc := NewEmbeddingService(enc, newFakeStore(), nil, false)

	_, err := svc.LabelEmbeddings(context.Background(), []string{"cat"}, 3)
	require.NoError(t, err)

	enc.model = "other-clip"
	enc.labelVecs["cat"] = []float32{0, 0, 1}
	got, err := svc.LabelEmbeddings(context.Background(), []string{"cat"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, got["cat"])
	assert.Equal(t, int32(2), enc.textCalls.Load())
}

func TestLabelEmbeddings_EncodedDimensionMismatch(t *testing.T) {
	enc := newFakeEncoder()
	enc.labelVecs["cat"] = []float32{1, 0}
	store := newFakeStore()
	svc := NewEmbeddingService(enc, store, nil, true)

	_, err := svc.LabelEmbeddings(context.Background(), []string{"cat", "dog"}, 3)
	assert.ErrorIs(t, err, port.ErrEncoderFailed)
	assert.Empty(t, store.labels)

	// Nothing from the failed batch is memoized.
	enc.labelVecs["cat"] = []float32{1, 0, 0}
	got, err := svc.LabelEmbeddings(context.Background(), []string{"cat"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got["cat"])
}
