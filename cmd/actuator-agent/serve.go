package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/konecto/actuator-agent/config"
	"github.com/konecto/actuator-agent/embed"
	"github.com/konecto/actuator-agent/engine"
	"github.com/konecto/actuator-agent/llm"
	"github.com/konecto/actuator-agent/memory"
	"github.com/konecto/actuator-agent/observability"
	"github.com/konecto/actuator-agent/server"
	"github.com/konecto/actuator-agent/store"
	"github.com/konecto/actuator-agent/tools"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversational HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.AnthropicAPIKey == "" {
		return errors.New("ANTHROPIC_API_KEY is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	embedder, err := embed.NewCachedEmbedder(embed.NewOpenAIEmbedder(embed.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	}), 0)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	defer embedder.Close()

	gateway := store.NewGateway(store.Config{
		SQLitePath: cfg.SQLitePath,
		ChromaDir:  cfg.ChromaDir,
		Collection: cfg.ChromaCollection,
		Embedder:   embedder,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err := gateway.Open(ctx); err != nil {
		return fmt.Errorf("open retrieval gateway: %w", err)
	}
	defer gateway.Close()
	logger.Info("retrieval gateway ready", "semantic_search", gateway.SemanticAvailable())

	conversations := memory.NewConversations(cfg.MaxTurns, cfg.MaxConversations)
	registry := engine.NewToolRegistry(
		tools.NewPartNumberTool(gateway),
		tools.NewSemanticTool(gateway),
	)
	decider := llm.NewAnthropicDecider(llm.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.MaxTokens,
	})

	agent := engine.New(decider, registry, conversations, engine.Config{
		MaxRounds:      cfg.MaxRounds,
		DeciderTimeout: cfg.DeciderTimeout,
		ToolTimeout:    cfg.ToolTimeout,
		Debug:          cfg.Debug,
	},
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
		engine.WithRecorder(observability.NewSlogRecorder(logger)),
	)

	srv := server.New(server.Config{
		Agent:          agent,
		Health:         gateway,
		MetricsHandler: observability.MetricsHandler(),
		Logger:         logger,
		AllowAnyOrigin: cfg.AllowAnyOrigin,
	})

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
