package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hnrs/adaptive-quiz/internal/config"
	"github.com/hnrs/adaptive-quiz/internal/docindex"
	"github.com/hnrs/adaptive-quiz/internal/generation"
	"github.com/hnrs/adaptive-quiz/internal/llm"
	"github.com/hnrs/adaptive-quiz/internal/logging"
	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// toolConfig is the subset of settings the CLI needs; no database is involved.
type toolConfig struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"warn"`
	AI         config.AI
	Generation config.Generation
	Guardrails config.Guardrails
	Storage    config.Storage
}

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var indexDir string

	cmd := &cobra.Command{
		Use:          "quizctl",
		Short:        "Manage document indexes for the adaptive quiz service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&indexDir, "index-dir", "", "index directory (default INDEX_DIR)")

	cmd.AddCommand(newIndexCmd(&indexDir))
	cmd.AddCommand(newListCmd(&indexDir))
	cmd.AddCommand(newPreviewCmd(&indexDir))
	return cmd
}

func loadToolConfig(indexDir string) (toolConfig, error) {
	var cfg toolConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if indexDir != "" {
		cfg.Storage.IndexDir = indexDir
	}
	return cfg, nil
}

func openStore(cfg toolConfig, completion docindex.Completer, logger zerolog.Logger) (*docindex.Store, error) {
	return docindex.NewStore(cfg.Storage.IndexDir, completion, logger)
}

func newIndexCmd(indexDir *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a .txt document and print its reference hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadToolConfig(*indexDir)
			if err != nil {
				return err
			}
			logger := logging.New("quizctl", cfg.Env, cfg.LogLevel)
			store, err := openStore(cfg, nil, logger)
			if err != nil {
				return err
			}
			hash, err := store.IndexFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newListCmd(indexDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadToolConfig(*indexDir)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, nil, logging.New("quizctl", cfg.Env, cfg.LogLevel))
			if err != nil {
				return err
			}
			docs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return printDocuments(cmd.OutOrStdout(), docs)
		},
	}
}

func printDocuments(out io.Writer, docs []docindex.DocumentInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tFILENAME\tCHUNKS\tINDEXED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Hash, d.Filename, d.Chunks, d.IndexedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// newPreviewCmd runs one generation pass against an index without creating a session.
func newPreviewCmd(indexDir *string) *cobra.Command {
	var (
		hash   string
		counts quiz.DifficultyCount
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Generate questions from an indexed document and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadToolConfig(*indexDir)
			if err != nil {
				return err
			}
			logger := logging.New("quizctl", cfg.Env, cfg.LogLevel)

			completion, err := llm.New(llm.Config{
				Provider:          cfg.AI.Provider,
				BaseURL:           cfg.AI.BaseURL,
				Model:             cfg.AI.Model,
				APIKey:            cfg.AI.APIKey,
				Temperature:       cfg.AI.Temperature,
				MaxTokens:         cfg.AI.MaxTokens,
				HealthTimeout:     cfg.AI.HealthTimeout,
				CompletionTimeout: cfg.AI.CompletionTimeout,
			}, logger)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, completion, logger)
			if err != nil {
				return err
			}
			ix, err := store.Open(cmd.Context(), hash)
			if err != nil {
				return err
			}

			tokens, err := cfg.Guardrails.Tokens()
			if err != nil {
				return err
			}
			scheduler := generation.NewScheduler(completion, generation.NewValidator(
				generation.WithBrandingTokens(tokens),
				generation.WithAnswerKeyPolicy(generation.AnswerKeyPolicy(cfg.Generation.AnswerKeyPolicy)),
			), generation.SchedulerOptions{Parallel: cfg.Generation.ParallelBuckets}, logger)

			res, err := scheduler.Run(cmd.Context(), ix, counts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "document reference printed by the index command")
	cmd.Flags().IntVar(&counts.Easy, "easy", 2, "easy questions")
	cmd.Flags().IntVar(&counts.Medium, "medium", 2, "medium questions")
	cmd.Flags().IntVar(&counts.Hard, "hard", 2, "hard questions")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
