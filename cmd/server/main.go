package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-clip-classifier/internal/adapter/ai"
	"github.com/arturoeanton/go-clip-classifier/internal/adapter/store"
	"github.com/arturoeanton/go-clip-classifier/internal/handler"
	"github.com/arturoeanton/go-clip-classifier/internal/mcp"
	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
	"github.com/arturoeanton/go-clip-classifier/internal/middleware"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
	"github.com/arturoeanton/go-clip-classifier/internal/service"
	"github.com/arturoeanton/go-clip-classifier/pkg/config"
	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting CLIP classifier",
		"port", cfg.Port,
		"model", cfg.ClipModelName,
		"encoder", cfg.ClipEncoderURL,
		"database", cfg.SafeDatabaseURL(),
		"label_expansion", cfg.OllamaChatURL != "" && cfg.EnableLLMLabelExpansion,
		"mcp_enabled", cfg.MCPEnabled,
		"auth", cfg.APIToken != "",
	)

	// ── Metrics ──────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore := store.NewPostgresStore(cfg.DatabaseURL, cfg.DBOpTimeout)
	defer pgStore.Close()
	metrics.RegisterStoreState(registry, func() float64 { return float64(pgStore.State()) })

	// ── Adapters ─────────────────────────────────────────────────────────
	encoder := ai.NewClipEncoder(ai.ClipEncoderConfig{
		BaseURL:    cfg.ClipEncoderURL,
		Model:      cfg.ClipModelName,
		Token:      cfg.ClipEncoderToken,
		LogitScale: cfg.ClipLogitScale,
		Timeout:    cfg.ClipEncoderTimeout,
	})

	var chat port.ChatProvider
	if cfg.OllamaChatURL != "" {
		chat = ai.NewOllamaProvider(ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.LabelExpansionModel,
			Token:   cfg.OllamaChatToken,
			Timeout: cfg.LabelExpansionTimeout,
		})
	}

	// ── Services ─────────────────────────────────────────────────────────
	embeddingService := service.NewEmbeddingService(encoder, pgStore, appMetrics, cfg.EnableEmbeddingCache)
	similarityService := service.NewSimilarityService(pgStore, appMetrics)
	expansionService := service.NewExpansionService(chat, pgStore, appMetrics, cfg.EnableLLMLabelExpansion, cfg.LabelExpansionTimeout)

	classifier := service.NewClassifierService(
		service.ClassifierConfig{
			DefaultLabels:         service.LoadDefaultLabels(cfg.DefaultLabelsJSON, cfg.DefaultLabelsPath),
			MaxLabels:             cfg.MaxLabels,
			TopK:                  cfg.TopK,
			NSFWThreshold:         cfg.NSFWThreshold,
			EnableEmbeddingCache:  cfg.EnableEmbeddingCache,
			EnableClustering:      cfg.EnableClustering,
			EnableAdaptiveScoring: cfg.EnableAdaptiveScoring,
			AdaptiveAlpha:         cfg.AdaptiveAlpha,
			EntropyThreshold:      cfg.EntropyThreshold,
			SimilarityThreshold:   cfg.SimilarityThreshold,
			SimilarityLimit:       cfg.SimilarityLimit,
			SimilarityScanLimit:   cfg.SimilarityScanLimit,
		},
		encoder,
		embeddingService,
		pgStore,
		similarityService,
		expansionService,
		appMetrics,
	)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		BodyLimit:    25 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.RequestMetrics(appMetrics))
	app.Use(middleware.TokenMiddleware(middleware.TokenConfig{
		Token:  cfg.APIToken,
		Public: []string{"/health", "/metrics"},
	}))

	// ── Routes ───────────────────────────────────────────────────────────
	classifyHandler := handler.NewClassifyHandler(classifier, func() string { return pgStore.State().String() })
	classifyHandler.Register(app)

	handler.RegisterMetrics(app, registry)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(classifier, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
