package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
)

func seedImages(store *fakeStore, rows ...domain.ImageEmbedding) {
	for _, r := range rows {
		if r.ModelName == "" {
			r.ModelName = "m"
		}
		store.SaveImageEmbedding(context.Background(), r)
	}
}

func TestFindSimilar_ExcludesSelfAndFilters(t *testing.T) {
	store := newFakeStore()
	seedImages(store,
		domain.ImageEmbedding{ImageHash: "self", Vector: []float32{1, 0}},
		domain.ImageEmbedding{ImageHash: "near", AssetID: "a-near", Vector: []float32{0.99, 0.1}},
		domain.ImageEmbedding{ImageHash: "far", Vector: []float32{0, 1}},
		domain.ImageEmbedding{ImageHash: "wrong-dim", Vector: []float32{1, 0, 0}},
		domain.ImageEmbedding{ImageHash: "empty"},
	)
	svc := NewSimilarityService(store, nil)

	got := svc.FindSimilar(context.Background(), SimilarityQuery{
		Vector: []float32{1, 0}, ModelName: "m", Threshold: 0.85, ExcludeHash: "self",
	})
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ImageHash)
	require.NotNil(t, got[0].AssetID)
	assert.Equal(t, "a-near", *got[0].AssetID)
	assert.GreaterOrEqual(t, got[0].Similarity, 0.85)
}

func TestFindSimilar_SortedAndLimited(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 10; i++ {
		seedImages(store, domain.ImageEmbedding{
			ImageHash: fmt.Sprintf("h%02d", i),
			Vector:    []float32{1, float32(i) * 0.05},
		})
	}
	seedImages(store, domain.ImageEmbedding{ImageHash: "dup-b", Vector: []float32{2, 0}})
	svc := NewSimilarityService(store, nil)

	got := svc.FindSimilar(context.Background(), SimilarityQuery{
		Vector: []float32{1, 0}, ModelName: "m", Threshold: 0.9, Limit: 4,
	})
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
	for _, hit := range got {
		assert.GreaterOrEqual(t, hit.Similarity, 0.9)
		assert.Nil(t, hit.AssetID)
	}
	// Exact ties break by hash.
	assert.Equal(t, "dup-b", got[0].ImageHash)
	assert.Equal(t, "h00", got[1].ImageHash)
}

func TestFindSimilar_EmptyCache(t *testing.T) {
	svc := NewSimilarityService(newFakeStore(), nil)
	got := svc.FindSimilar(context.Background(), SimilarityQuery{Vector: []float32{1}, ModelName: "m", Threshold: 0.5})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, DefaultSimilarityLimit, clampInt(0, DefaultSimilarityLimit, 1, MaxSimilarityLimit))
	assert.Equal(t, MaxSimilarityLimit, clampInt(500, DefaultSimilarityLimit, 1, MaxSimilarityLimit))
	assert.Equal(t, MinScanLimit, clampInt(10, DefaultScanLimit, MinScanLimit, MaxScanLimit))
}
