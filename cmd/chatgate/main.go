package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/persona-chat-gateway/internal/chat"
	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/dialogue"
	"github.com/tjfontaine/persona-chat-gateway/internal/gate"
	"github.com/tjfontaine/persona-chat-gateway/internal/normalize"
	"github.com/tjfontaine/persona-chat-gateway/internal/orchestrator"
	"github.com/tjfontaine/persona-chat-gateway/internal/prompt"
	"github.com/tjfontaine/persona-chat-gateway/internal/provider"
	"github.com/tjfontaine/persona-chat-gateway/internal/server"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage/memory"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage/sqlite"
	"github.com/tjfontaine/persona-chat-gateway/internal/telemetry"
	"github.com/tjfontaine/persona-chat-gateway/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.LoadFile(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Gateway shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	provider.RegisterBuiltins()
	chain, err := buildChain(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	prompts, err := prompt.Load(cfg.Prompt.SystemTemplate, cfg.Prompt.TemplateFile)
	if err != nil {
		return err
	}
	contract, err := normalize.NewContract(cfg.Contract)
	if err != nil {
		return err
	}

	g := gate.New(cfg.Gate, logger)
	handler := &chat.Handler{
		Gate: g,
		Tracker: dialogue.NewTracker(nil, nil, dialogue.Options{
			MinUserMessages:      cfg.Dialogue.MinUserMessages,
			GoodQualityThreshold: cfg.Dialogue.GoodQualityThreshold,
			MinAnswerLength:      cfg.Dialogue.MinAnswerLength,
			GoodAnswerLength:     cfg.Dialogue.GoodAnswerLength,
			IncludeAssistant:     cfg.Dialogue.IncludeAssistant,
		}),
		Prompts:      prompts,
		Orchestrator: orchestrator.New(cfg.Generation, tokens.NewCounter(), logger),
		Chain:        chain,
		Normalizer:   normalize.New(contract, logger),
		Store:        store,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	}

	srv := server.New(cfg.Server, logger)
	handler.Routes(srv.Router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Run(ctx)
	})
	eg.Go(func() error {
		return g.RateLimiter().RunSweeper(ctx, cfg.Gate.RateLimit.SweepInterval, cfg.Gate.RateLimit.Retention, logger)
	})

	logger.Info("Gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.Int("providers", len(chain)),
		slog.String("storage", cfg.Storage.Type),
	)
	return eg.Wait()
}

// buildChain creates providers in configured priority order.
func buildChain(cfg *config.Config) (orchestrator.Chain, error) {
	httpClient := provider.NewHTTPClient()
	chain := make(orchestrator.Chain, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := provider.New(pc, httpClient)
		if err != nil {
			return nil, err
		}
		chain = append(chain, orchestrator.Entry{
			Provider:    p,
			Model:       pc.Model,
			Timeout:     pc.Timeout,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
			JSONMode:    pc.JSONMode,
		})
	}
	return chain, nil
}

func openStore(cfg config.StorageConfig) (storage.ConversationStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, nil
	}
}

func configPath() string {
	if p := os.Getenv("CHATGATE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
