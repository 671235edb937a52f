package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	AppName  string
	APIToken string // Bearer token for /classify and /feedback (empty = open)

	// Database (empty = persistent caches disabled)
	DatabaseURL string
	DBOpTimeout time.Duration

	// CLIP encoder sidecar
	ClipEncoderURL     string
	ClipEncoderToken   string // Bearer token (empty = no auth)
	ClipModelName      string
	ClipLogitScale     float64
	ClipEncoderTimeout time.Duration

	// Labels
	MaxLabels         int
	TopK              int
	DefaultLabelsJSON string
	DefaultLabelsPath string
	NSFWThreshold     float64
	EntropyThreshold  float64
	AdaptiveAlpha     float64

	// Feature flags
	EnableEmbeddingCache    bool
	EnableClustering        bool
	EnableAdaptiveScoring   bool
	EnableLLMLabelExpansion bool

	// Similarity search
	SimilarityThreshold float64
	SimilarityLimit     int
	SimilarityScanLimit int

	// Ollama label expansion (empty URL = disabled)
	OllamaChatURL         string
	OllamaChatToken       string // Bearer token for Ollama Cloud (empty = local)
	LabelExpansionModel   string
	LabelExpansionTimeout time.Duration

	// MCP
	MCPEnabled bool
	MCPPort    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:     envOrDefault("PORT", "8008"),
		AppName:  envOrDefault("APP_NAME", "CLIP Classifier"),
		APIToken: os.Getenv("CLIP_API_TOKEN"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBOpTimeout: envOrDefaultMillis("DB_OP_TIMEOUT_MS", 3000, 200),

		ClipEncoderURL:     envOrDefault("CLIP_ENCODER_URL", "http://localhost:8090"),
		ClipEncoderToken:   os.Getenv("CLIP_ENCODER_TOKEN"),
		ClipModelName:      envOrDefault("CLIP_MODEL_NAME", "MobileCLIP-S1"),
		ClipLogitScale:     envOrDefaultFloat("CLIP_LOGIT_SCALE", 100),
		ClipEncoderTimeout: envOrDefaultMillis("CLIP_ENCODER_TIMEOUT_MS", 15000, 500),

		MaxLabels:         max(5, envOrDefaultInt("CLIP_MAX_LABELS", 256)),
		TopK:              clamp(envOrDefaultInt("CLIP_TOP_K", 5), 1, 20),
		DefaultLabelsJSON: os.Getenv("CLIP_DEFAULT_LABELS_JSON"),
		DefaultLabelsPath: os.Getenv("CLIP_DEFAULT_LABELS_PATH"),
		NSFWThreshold:     envOrDefaultFloat("NSFW_THRESHOLD", 0.6),
		EntropyThreshold:  envOrDefaultFloat("ENTROPY_THRESHOLD", 2.5),
		AdaptiveAlpha:     envOrDefaultFloat("ADAPTIVE_ALPHA", 0.4),

		EnableEmbeddingCache:    envOrDefaultBool("ENABLE_EMBEDDING_CACHE", true),
		EnableClustering:        envOrDefaultBool("ENABLE_CLUSTERING", true),
		EnableAdaptiveScoring:   envOrDefaultBool("ENABLE_ADAPTIVE_SCORING", true),
		EnableLLMLabelExpansion: envOrDefaultBool("ENABLE_LLM_LABEL_EXPANSION", true),

		SimilarityThreshold: envOrDefaultFloat("SIMILARITY_THRESHOLD", 0.85),
		SimilarityLimit:     clamp(envOrDefaultInt("SIMILARITY_LIMIT", 25), 1, 100),
		SimilarityScanLimit: clamp(envOrDefaultInt("SIMILARITY_SCAN_LIMIT", 3000), 100, 20000),

		OllamaChatURL:         strings.TrimSpace(os.Getenv("OLLAMA_CHAT_URL")),
		OllamaChatToken:       os.Getenv("OLLAMA_CHAT_TOKEN"),
		LabelExpansionModel:   envOrDefault("LLM_LABEL_EXPANSION_MODEL", "qwen3"),
		LabelExpansionTimeout: envOrDefaultMillis("LLM_LABEL_EXPANSION_TIMEOUT_MS", 6000, 1000),

		MCPEnabled: envOrDefaultBool("MCP_ENABLED", false),
		MCPPort:    envOrDefault("MCP_PORT", "8009"),
	}
}

// SafeDatabaseURL returns DatabaseURL with the password masked, for logging.
func (c *Config) SafeDatabaseURL() string {
	if c.DatabaseURL == "" {
		return ""
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

// envOrDefaultBool accepts 1/true/yes/y/on and 0/false/no/n/off.
func envOrDefaultBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback, minimum int) time.Duration {
	return time.Duration(max(minimum, envOrDefaultInt(key, fallback))) * time.Millisecond
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
