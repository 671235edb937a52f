package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req struct {
			Model    string              `json:"model"`
			Format   string              `json:"format"`
			Stream   bool                `json:"stream"`
			Messages []map[string]string `json:"messages"`
			Options  map[string]float64  `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen3", req.Model)
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0]["role"])
		assert.Equal(t, "sys", req.Messages[0]["content"])
		assert.Equal(t, "user", req.Messages[1]["role"])
		assert.Equal(t, 400.0, req.Options["num_predict"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"subtags":["tabby"]}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaEndpointConfig{BaseURL: srv.URL, Model: "qwen3", Token: "tok"})
	out, err := p.Chat(context.Background(), "sys", "labels")
	require.NoError(t, err)
	assert.Equal(t, `{"subtags":["tabby"]}`, out)
	assert.Equal(t, "qwen3", p.ModelName())
}

func TestOllamaProvider_ChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaEndpointConfig{BaseURL: srv.URL, Model: "qwen3"})
	_, err := p.Chat(context.Background(), "sys", "labels")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
