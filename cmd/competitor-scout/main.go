package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/competitor-scout/pkg/clients"
	"github.com/mikeboe/competitor-scout/pkg/config"
	"github.com/mikeboe/competitor-scout/pkg/gateway"
	"github.com/mikeboe/competitor-scout/pkg/research"
)

var (
	name     string
	website  string
	industry string
	output   string
)

func main() {
	// Logs and progress go to stderr so the report alone lands on stdout.
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "competitor-scout",
		Short: "A terminal-based competitive intelligence researcher",
		Long:  `competitor-scout researches a named company across four dimensions (company, industry, financials, news) and compiles the findings into a single markdown report.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("name") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)

				fmt.Fprint(os.Stderr, "Enter competitor name: ")
				input, _ := reader.ReadString('\n')
				name = strings.TrimSpace(input)
				if name == "" {
					slog.Error("Competitor name cannot be empty")
					os.Exit(1)
				}

				fmt.Fprint(os.Stderr, "Enter competitor website (optional): ")
				input, _ = reader.ReadString('\n')
				website = strings.TrimSpace(input)
			} else if name == "" {
				slog.Error("--name flag provided but empty")
				os.Exit(1)
			}

			cfg, err := config.Load()
			if err != nil {
				slog.Error("Failed to load configuration", "error", err)
				os.Exit(1)
			}

			ctx := context.Background()
			deps, err := buildDeps(ctx, cfg)
			if err != nil {
				slog.Error("Failed to build capability clients", "error", err)
				os.Exit(1)
			}

			opts := research.Options{
				MaxSearchResults:   cfg.MaxSearchResults,
				RelevanceThreshold: cfg.RelevanceThreshold,
				CurationBatchSize:  cfg.CurationBatchSize,
			}

			var business *research.BusinessContext
			if industry != "" {
				business = &research.BusinessContext{Industry: industry}
			}

			slog.Info("Starting research", "company", name, "website", website)

			competitor := research.CompetitorDescriptor{Name: name, Website: website}
			result := research.RunResearch(ctx, deps, opts, competitor, business, progressPrinter())

			if !result.Success {
				slog.Error("Research failed", "error", result.Error)
				os.Exit(1)
			}

			slog.Info("Research completed",
				"documents", result.Metadata.TotalDocuments,
				"sources", len(result.Metadata.Sources),
				"duration", result.Metadata.Duration.Round(time.Second),
			)

			if output == "" {
				fmt.Println(result.Report)
				return
			}
			if err := os.WriteFile(output, []byte(result.Report), 0o644); err != nil {
				slog.Error("Failed to write report", "path", output, "error", err)
				os.Exit(1)
			}
			slog.Info("Report written", "path", output)
		},
	}

	rootCmd.Flags().StringVarP(&name, "name", "n", "", "The competitor to research")
	rootCmd.Flags().StringVarP(&website, "website", "w", "", "The competitor's website")
	rootCmd.Flags().StringVarP(&industry, "industry", "i", "", "Industry hint, skips industry detection")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Report file path (default stdout)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// progressPrinter renders pipeline progress as single stderr lines,
// skipping the streamed report chunks that would flood a terminal.
func progressPrinter() research.ProgressObserver {
	return research.ObserverFunc(func(ev research.ProgressEvent) {
		if ev.Payload != nil && ev.Payload["chunk"] != nil {
			return
		}
		if ev.Progress != nil {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %-18s %s\n", *ev.Progress, ev.Stage, ev.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "[    ] %-18s %s\n", ev.Stage, ev.Message)
	})
}

// buildDeps constructs the capability clients once at process start and
// wires them to the gateway the pipeline will call through.
func buildDeps(ctx context.Context, cfg *config.Config) (research.Deps, error) {
	logger := slog.Default()

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
