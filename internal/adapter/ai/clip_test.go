package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

func TestClipEncoder_EncodeImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/encode/image", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Model string `json:"model"`
			Image string `json:"image"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "MobileCLIP-S1", req.Model)
		raw, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), raw)

		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{3, 4}})
	}))
	defer srv.Close()

	enc := NewClipEncoder(ClipEncoderConfig{BaseURL: srv.URL + "/", Model: "MobileCLIP-S1", Token: "secret", Timeout: time.Second})
	v, err := enc.EncodeImage(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, "MobileCLIP-S1", enc.ModelName())
	assert.Equal(t, 100.0, enc.LogitScale())
}

func TestClipEncoder_EncodeImageEmpty(t *testing.T) {
	enc := NewClipEncoder(ClipEncoderConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := enc.EncodeImage(context.Background(), nil)
	assert.ErrorIs(t, err, port.ErrEmptyImage)
}

func TestClipEncoder_EncodeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/encode/text", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"cat", "dog"}, req.Texts)

		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{2, 0}, {0, 5}}})
	}))
	defer srv.Close()

	enc := NewClipEncoder(ClipEncoderConfig{BaseURL: srv.URL, Model: "m", LogitScale: 50})
	got, err := enc.EncodeText(context.Background(), []string{"cat", "dog"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
	assert.Equal(t, 50.0, enc.LogitScale())
}

func TestClipEncoder_EncodeTextCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	enc := NewClipEncoder(ClipEncoderConfig{BaseURL: srv.URL, Model: "m"})
	_, err := enc.EncodeText(context.Background(), []string{"cat", "dog"})
	assert.ErrorIs(t, err, port.ErrEncoderFailed)
}

func TestClipEncoder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	enc := NewClipEncoder(ClipEncoderConfig{BaseURL: srv.URL, Model: "m"})
	_, err := enc.EncodeImage(context.Background(), []byte{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrEncoderFailed)
	assert.Contains(t, err.Error(), "503")
}
