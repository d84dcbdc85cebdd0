package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/konecto/actuator-agent/config"
	"github.com/konecto/actuator-agent/embed"
	"github.com/konecto/actuator-agent/ingest"
)

func newIngestCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "ingest <csv-file>",
		Short: "Rebuild the SQLite and vector stores from an actuator CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.OpenAIAPIKey == "" {
				return errors.New("OPENAI_API_KEY is required")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			// No cache here: every narrative chunk is unique, and the raw
			// client batches texts per API call.
			embedder := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
				APIKey:     cfg.OpenAIAPIKey,
				BaseURL:    cfg.OpenAIBaseURL,
				Model:      cfg.EmbeddingModel,
				Dimensions: cfg.EmbeddingDimensions,
			})

			pipeline := ingest.NewPipeline(ingest.Config{
				SQLitePath:  cfg.SQLitePath,
				ChromaDir:   cfg.ChromaDir,
				Collection:  cfg.ChromaCollection,
				Embedder:    embedder,
				Logger:      logger,
				Concurrency: concurrency,
			})
			summary, err := pipeline.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			logger.Info("ingest complete", "rows", summary.Rows, "chunks", summary.Chunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel embedding requests")
	return cmd
}
