package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

// BuiltinDefaultLabels is the label set used when no override is configured.
var BuiltinDefaultLabels = []string{
	"anime illustration", "manga panel", "cartoon", "comic art", "chibi character",
	"3d render", "pixel art", "vector illustration", "line art drawing",
	"watercolor painting", "oil painting",
	"real life photo", "portrait photo", "selfie photo", "group photo", "close-up face photo",
	"landscape photo", "cityscape photo", "street photography", "night photo",
	"indoor photo", "outdoor photo", "nature photo", "animal photo", "pet photo",
	"food photo", "product photo", "car photo", "motorcycle photo",
	"document screenshot", "website screenshot", "mobile app screenshot",
	"desktop app screenshot", "chat screenshot",
	"video game screenshot", "fps game screenshot", "rpg game screenshot",
	"moba game screenshot", "racing game screenshot", "sports game screenshot",
	"stream overlay screenshot",
	"meme image", "reaction meme", "shitpost meme", "motivational quote image", "text-only image",
	"poster design", "banner design", "logo design", "brand identity image", "infographic",
	"presentation slide", "advertisement image", "flyer design", "event poster",
	"album cover", "book cover", "movie poster",
	"anime wallpaper", "gaming wallpaper", "abstract wallpaper", "minimal wallpaper", "tech wallpaper",
	"sticker style image", "emoji style image", "telegram sticker style", "whatsapp sticker style",
	"cute style image", "kawaii style image", "dark aesthetic image", "cyberpunk style image",
	"fantasy art", "sci-fi art", "horror art", "gothic style image", "retro style image",
	"vaporwave style image", "glitch art",
	"low quality compressed image", "blurry image", "watermarked image", "collage image",
	"photo with overlaid text", "handwritten note photo", "whiteboard photo",
	"code screenshot", "terminal screenshot", "dashboard screenshot", "chart screenshot",
	"ui mockup", "wireframe design",
	"architecture photo", "interior design photo", "fashion photo", "beauty photo",
	"wedding photo", "party photo", "sports photo", "gym photo", "travel photo",
	"beach photo", "mountain photo", "forest photo", "rainy weather photo", "sunset photo",
	"space themed image", "medical image", "educational image", "news image",
	"political image", "religious image",
	"family-friendly content", "violent content", "weapon content", "gore content",
	"drug-related content", "alcohol-related content", "smoking-related content",
	"suggestive content", "nsfw content", "adult explicit content",
}

var nsfwKeywords = []string{"nsfw", "adult", "explicit", "porn", "sexual"}

// ParseLabels parses a caller-supplied label list. Input starting with "[" must
// be a JSON array; anything else is split on newlines or commas. Blank input
// returns nil so the defaults apply.
func ParseLabels(raw string) ([]string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	if strings.HasPrefix(value, "[") {
		labels, err := decodeLabelArray(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", port.ErrInvalidLabels, err)
		}
		return labels, nil
	}

	return splitLabels(value), nil
}

// LoadDefaultLabels resolves the default label set: an inline value first, then
// a file, then BuiltinDefaultLabels. Unusable overrides are skipped.
func LoadDefaultLabels(inline, path string) []string {
	if labels := lenientLabels(inline); len(labels) > 0 {
		slog.Info("default labels loaded", "source", "inline", "count", len(labels))
		return labels
	}

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("default labels file unreadable", "path", path, "error", err)
		} else if labels := lenientLabels(string(data)); len(labels) > 0 {
			slog.Info("default labels loaded", "source", path, "count", len(labels))
			return labels
		}
	}

	return append([]string(nil), BuiltinDefaultLabels...)
}

// NormalizeLabels trims labels, drops blanks, removes case-insensitive
// duplicates (keeping the first spelling) and caps the result at maxLabels.
// A nil input selects defaults.
func NormalizeLabels(labels, defaults []string, maxLabels int) ([]string, error) {
	if labels == nil {
		labels = defaults
	}

	clean := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		clean = append(clean, label)
	}

	if len(clean) == 0 {
		return nil, port.ErrEmptyLabels
	}
	if maxLabels > 0 && len(clean) > maxLabels {
		clean = clean[:maxLabels]
	}
	return clean, nil
}

// PickNSFWLabel returns the first label naming explicit content, or "".
func PickNSFWLabel(labels []string) string {
	for _, label := range labels {
		lower := strings.ToLower(label)
		for _, kw := range nsfwKeywords {
			if strings.Contains(lower, kw) {
				return label
			}
		}
	}
	return ""
}

// NormalizeTheme lowercases and trims a theme, truncated to
// domain.MaxThemeLength characters.
func NormalizeTheme(theme string) string {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if r := []rune(theme); len(r) > domain.MaxThemeLength {
		theme = string(r[:domain.MaxThemeLength])
	}
	return theme
}

func lenientLabels(raw string) []string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "[") {
		if labels, err := decodeLabelArray(value); err == nil {
			return labels
		}
	}
	return splitLabels(value)
}

func splitLabels(value string) []string {
	sep := ","
	if strings.Contains(value, "\n") {
		sep = "\n"
	}
	var out []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func decodeLabelArray(value string) ([]string, error) {
	var items []any
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text := stringify(item); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// stringify renders a decoded JSON scalar as trimmed text. Nulls become "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
