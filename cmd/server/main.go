package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/competitor-scout/pkg/clients"
	"github.com/mikeboe/competitor-scout/pkg/config"
	"github.com/mikeboe/competitor-scout/pkg/gateway"
	"github.com/mikeboe/competitor-scout/pkg/research"
	"github.com/mikeboe/competitor-scout/pkg/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	deps, err := buildDeps(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build capability clients: %v", err)
	}

	opts := research.Options{
		MaxSearchResults:   cfg.MaxSearchResults,
		RelevanceThreshold: cfg.RelevanceThreshold,
		CurationBatchSize:  cfg.CurationBatchSize,
	}

	svc := server.NewService(deps, opts, logger)
	handler := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildDeps constructs the capability clients once at process start and
// wires them to the gateway the pipeline will call through.
func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (research.Deps, error) {
	models, err := clients.NewModels(ctx, cfg.Provider, cfg.ProviderKey(), cfg.FastModel, cfg.ReasoningModel)
	if err != nil {
		return research.Deps{}, fmt.Errorf("building llm clients: %w", err)
	}

	var extractor research.Extractor
	if cfg.ExtractApiKey != "" {
		extractor = clients.NewFirecrawlClient(cfg.ExtractApiKey, cfg.ExtractApiURL)
	} else {
		logger.Info("no extraction api key set, using local html extraction")
		extractor = clients.NewLocalExtractor()
	}

	limits, err := gateway.LoadLimits(cfg.GatewayLimitsFile)
	if err != nil {
		logger.Warn("failed to load gateway limits, using defaults", "error", err)
	}

	return research.Deps{
		Fast:      models.Fast,
		Reasoning: models.Reasoning,
		Searcher:  clients.NewBraveClient(cfg.BraveApiKey),
		Extractor: extractor,
		Gateway:   gateway.New(limits, cfg.GatewayMaxAttempts, logger),
		Logger:    logger,
	}, nil
}
