package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/go-clip-classifier/internal/port"
	"github.com/arturoeanton/go-clip-classifier/internal/vecmath"
)

// ClipEncoderConfig configures the CLIP encoder sidecar.
type ClipEncoderConfig struct {
	BaseURL    string // e.g. http://localhost:8090
	Model      string // e.g. MobileCLIP-S1
	Token      string // Bearer token (empty = no auth)
	LogitScale float64
	Timeout    time.Duration
}

// ClipEncoder implements port.VisionEncoder against an HTTP sidecar that
// hosts the vision-language model.
type ClipEncoder struct {
	cfg        ClipEncoderConfig
	httpClient *http.Client
}

// NewClipEncoder creates a sidecar-backed encoder. A non-positive logit
// scale falls back to 100.
func NewClipEncoder(cfg ClipEncoderConfig) *ClipEncoder {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.LogitScale <= 0 {
		cfg.LogitScale = 100
	}
	return &ClipEncoder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ModelName returns the encoder model identifier.
func (c *ClipEncoder) ModelName() string {
	return c.cfg.Model
}

// LogitScale returns the temperature applied to cosine similarities.
func (c *ClipEncoder) LogitScale() float64 {
	return c.cfg.LogitScale
}

// EncodeImage returns the unit embedding of one image.
func (c *ClipEncoder) EncodeImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, port.ErrEmptyImage
	}

	payload := map[string]interface{}{
		"model": c.cfg.Model,
		"image": base64.StdEncoding.EncodeToString(image),
	}

	body, err := c.post(ctx, "/encode/image", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode image: %w", port.ErrEncoderFailed, err)
	}

	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: encode image decode: %w", port.ErrEncoderFailed, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: encode image: empty embedding", port.ErrEncoderFailed)
	}

	return vecmath.Normalize(resp.Embedding), nil
}

// EncodeText returns one unit embedding per label, aligned by index.
func (c *ClipEncoder) EncodeText(ctx context.Context, labels []string) ([][]float32, error) {
	if len(labels) == 0 {
		return [][]float32{}, nil
	}

	payload := map[string]interface{}{
		"model": c.cfg.Model,
		"texts": labels,
	}

	body, err := c.post(ctx, "/encode/text", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode text: %w", port.ErrEncoderFailed, err)
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: encode text decode: %w", port.ErrEncoderFailed, err)
	}
	if len(resp.Embeddings) != len(labels) {
		return nil, fmt.Errorf("%w: encode text: got %d embeddings for %d labels",
			port.ErrEncoderFailed, len(resp.Embeddings), len(labels))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: encode text: empty embedding for %q", port.ErrEncoderFailed, labels[i])
		}
		out[i] = vecmath.Normalize(v)
	}
	return out, nil
}

func (c *ClipEncoder) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("encoder API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
