package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

// MaxExpansionLabels is how many top labels are sent for enrichment.
const MaxExpansionLabels = 3

// Per-field caps applied when sanitizing an enrichment payload.
const (
	maxSubtags         = 20
	maxStyleTraits     = 12
	maxEmotions        = 10
	maxPackSuggestions = 12
)

const expansionSystemPrompt = "You are a multimodal taxonomy assistant. " +
	"Return only valid JSON with keys: subtags, style_traits, emotions, pack_suggestions."

// ExpansionService enriches top labels with subtags, style traits, emotions
// and pack suggestions from a chat model, caching every answer by label set.
type ExpansionService struct {
	chat    port.ChatProvider
	store   port.ExpansionStore
	metrics *metrics.Metrics
	enabled bool
	timeout time.Duration

	group singleflight.Group
}

// NewExpansionService creates a new expansion service. A nil chat provider
// disables enrichment.
func NewExpansionService(chat port.ChatProvider, store port.ExpansionStore, m *metrics.Metrics, enabled bool, timeout time.Duration) *ExpansionService {
	if timeout < time.Second {
		timeout = time.Second
	}
	return &ExpansionService{
		chat:    chat,
		store:   store,
		metrics: m,
		enabled: enabled && chat != nil,
		timeout: timeout,
	}
}

// Enabled reports whether enrichment calls are made at all.
func (s *ExpansionService) Enabled() bool {
	return s != nil && s.enabled
}

// Expand returns the enrichment payload for the given labels, ordered
// highest score first. It never fails; problems yield the empty payload.
func (s *ExpansionService) Expand(ctx context.Context, topLabels []string) domain.Expansion {
	if !s.Enabled() {
		s.metrics.ObserveExpansion("disabled")
		return domain.EmptyExpansion()
	}

	labels := cleanExpansionLabels(topLabels)
	if len(labels) == 0 {
		return domain.EmptyExpansion()
	}

	model := s.chat.ModelName()
	key := ExpansionCacheKey(model, labels)

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		return s.resolve(ctx, key, model, labels), nil
	})
	return cloneExpansion(v.(domain.Expansion))
}

func (s *ExpansionService) resolve(ctx context.Context, key, model string, labels []string) domain.Expansion {
	if s.store != nil {
		if raw, ok := s.store.GetExpansion(ctx, key); ok {
			if payload, ok := decodeObject(raw); ok {
				s.metrics.ObserveExpansion("cache_hit")
				s.metrics.ObserveCache(metrics.CacheExpansion, true)
				return normalizeExpansion(payload)
			}
		}
		s.metrics.ObserveCache(metrics.CacheExpansion, false)
	}

	// Detached from the caller; every waiter on this key shares the reply.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	result := domain.EmptyExpansion()
	labelsJSON, _ := marshalCompact(labels)
	userPrompt := "Top labels from an image classifier: " + string(labelsJSON) + ". " +
		"Generate semantic subtags, visual style traits, emotions and related pack themes. " +
		"Do not repeat labels verbatim unless needed. Keep each list concise."

	reply, err := s.chat.Chat(callCtx, expansionSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("label expansion failed", "model", model, "labels", labels, "error", err)
		s.metrics.ObserveExpansion("remote_error")
	} else if payload, ok := extractJSONObject(reply); ok {
		result = normalizeExpansion(payload)
		s.metrics.ObserveExpansion("remote_ok")
	} else {
		slog.Warn("label expansion reply unparseable", "model", model, "labels", labels)
		s.metrics.ObserveExpansion("remote_error")
	}

	// Failures are stored as the empty payload too.
	if s.store != nil {
		s.store.SaveExpansion(context.WithoutCancel(ctx), key, model, labels, result)
	}
	return result
}

// ExpansionCacheKey is the SHA-256 hex of {"model":M,"labels":[...]} in
// compact JSON. Label order matters.
func ExpansionCacheKey(model string, labels []string) string {
	payload, _ := marshalCompact(struct {
		Model  string   `json:"model"`
		Labels []string `json:"labels"`
	}{Model: model, Labels: labels})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func cleanExpansionLabels(labels []string) []string {
	out := make([]string, 0, MaxExpansionLabels)
	for _, label := range labels {
		if label = strings.TrimSpace(label); label == "" {
			continue
		}
		out = append(out, label)
		if len(out) == MaxExpansionLabels {
			break
		}
	}
	return out
}

// extractJSONObject pulls the first {...} span out of a model reply,
// tolerating markdown fences and surrounding prose.
func extractJSONObject(text string) (map[string]any, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, false
	}

	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimSpace(strings.Trim(raw, "`"))
		if strings.HasPrefix(strings.ToLower(raw), "json") {
			raw = strings.TrimSpace(raw[4:])
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObject([]byte(raw[start : end+1]))
}

func decodeObject(raw []byte) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return nil, false
	}
	return payload, true
}

func normalizeExpansion(payload map[string]any) domain.Expansion {
	return domain.Expansion{
		Subtags:         sanitizeList(payload["subtags"], maxSubtags),
		StyleTraits:     sanitizeList(payload["style_traits"], maxStyleTraits),
		Emotions:        sanitizeList(payload["emotions"], maxEmotions),
		PackSuggestions: sanitizeList(payload["pack_suggestions"], maxPackSuggestions),
	}
}

// sanitizeList keeps the first maxItems non-blank, case-insensitively unique
// entries of a JSON array. Anything that is not an array yields an empty list.
func sanitizeList(v any, maxItems int) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		text := stringify(item)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, text)
		if len(out) >= maxItems {
			break
		}
	}
	return out
}

func cloneExpansion(e domain.Expansion) domain.Expansion {
	return domain.Expansion{
		Subtags:         append([]string{}, e.Subtags...),
		StyleTraits:     append([]string{}, e.StyleTraits...),
		Emotions:        append([]string{}, e.Emotions...),
		PackSuggestions: append([]string{}, e.PackSuggestions...),
	}
}

// marshalCompact encodes v without HTML escaping and without the trailing
// newline json.Encoder appends.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
