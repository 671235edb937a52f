package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

type fakeEncoder struct {
	model      string
	imageVec   []float32
	labelVecs  map[string][]float32
	imageCalls atomic.Int32
	textCalls  atomic.Int32
	textLabels [][]string
	mu         sync.Mutex
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		model:    "test-clip",
		imageVec: []float32{1, 0, 0},
		labelVecs: map[string][]float32{
			"cat":          {1, 0, 0},
			"dog":          {0, 1, 0},
			"nsfw content": {0, 0, 1},
		},
	}
}

func (f *fakeEncoder) ModelName() string   { return f.model }
func (f *fakeEncoder) LogitScale() float64 { return 100 }

func (f *fakeEncoder) EncodeImage(_ context.Context, image []byte) ([]float32, error) {
	f.imageCalls.Add(1)
	if len(image) == 0 {
		return nil, port.ErrEmptyImage
	}
	return f.imageVec, nil
}

func (f *fakeEncoder) EncodeText(_ context.Context, labels []string) ([][]float32, error) {
	f.textCalls.Add(1)
	f.mu.Lock()
	f.textLabels = append(f.textLabels, append([]string(nil), labels...))
	f.mu.Unlock()

	out := make([][]float32, len(labels))
	for i, label := range labels {
		v, ok := f.labelVecs[label]
		if !ok {
			v = []float32{0.5, 0.5, 0.5}
		}
		out[i] = v
	}
	return out, nil
}

// fakeStore implements every store port in memory.
type fakeStore struct {
	mu sync.Mutex

	images     map[string]domain.ImageEmbedding
	labels     map[string][]float32
	expansions map[string][]byte
	affinity   map[string]float64
	feedback   map[string]*domain.FeedbackRecord
	events     []domain.FeedbackEvent
	failWrites bool

	imageReads     atomic.Int32
	labelReads     atomic.Int32
	expansionReads atomic.Int32
	expansionSaves atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		images:     map[string]domain.ImageEmbedding{},
		labels:     map[string][]float32{},
		expansions: map[string][]byte{},
		affinity:   map[string]float64{},
		feedback:   map[string]*domain.FeedbackRecord{},
	}
}

func (f *fakeStore) GetImageEmbedding(_ context.Context, imageHash, modelName string) ([]float32, bool) {
	f.imageReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.images[imageHash+"|"+modelName]
	return e.Vector, ok
}

func (f *fakeStore) SaveImageEmbedding(_ context.Context, e domain.ImageEmbedding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[e.ImageHash+"|"+e.ModelName] = e
}

func (f *fakeStore) GetLabelEmbeddings(_ context.Context, modelName string, labels []string) map[string][]float32 {
	f.labelReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string][]float32{}
	for _, label := range labels {
		if v, ok := f.labels[modelName+"|"+label]; ok {
			out[label] = v
		}
	}
	return out
}

func (f *fakeStore) SaveLabelEmbeddings(_ context.Context, modelName string, vectors map[string][]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for label, v := range vectors {
		f.labels[modelName+"|"+label] = v
	}
}

func (f *fakeStore) ListImageEmbeddings(_ context.Context, modelName string, scanLimit int) []domain.ImageEmbedding {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ImageEmbedding
	for _, e := range f.images {
		if e.ModelName == modelName {
			out = append(out, e)
		}
	}
	if len(out) > scanLimit {
		out = out[:scanLimit]
	}
	return out
}

func (f *fakeStore) AffinityWeight(_ context.Context, imageHash, theme string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := imageHash + "|" + theme
	if w, ok := f.affinity[key]; ok {
		return w
	}
	if rec, ok := f.feedback[key]; ok {
		return rec.AffinityWeight()
	}
	return 0
}

func (f *fakeStore) RecordFeedback(_ context.Context, event domain.FeedbackEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return port.ErrStoreUnavailable
	}
	f.events = append(f.events, event)

	key := event.ImageHash + "|" + event.Theme
	rec, ok := f.feedback[key]
	if !ok {
		rec = &domain.FeedbackRecord{ImageHash: event.ImageHash, Theme: event.Theme}
		f.feedback[key] = rec
	}
	if event.Accepted {
		rec.AcceptanceCount++
	}
	rec.TotalAssignments++
	return nil
}

func (f *fakeStore) GetExpansion(_ context.Context, cacheKey string) ([]byte, bool) {
	f.expansionReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.expansions[cacheKey]
	return raw, ok
}

func (f *fakeStore) SaveExpansion(_ context.Context, cacheKey, _ string, _ []string, expansion domain.Expansion) {
	f.expansionSaves.Add(1)
	raw, _ := marshalCompact(expansion)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expansions[cacheKey] = raw
}

type fakeChat struct {
	reply string
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeChat) ModelName() string { return "qwen3" }

func (f *fakeChat) Chat(ctx context.Context, _, _ string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

var errChatDown = errors.New("chat backend down")

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
