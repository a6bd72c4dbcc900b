package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hnrs/adaptive-quiz/internal/app"
	"github.com/hnrs/adaptive-quiz/internal/config"
)

const defaultEnvFile = "configs/.env"

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", "adaptive-quiz").Logger()

	if err := run(context.Background(), os.Getenv("ENV_FILE")); err != nil {
		log.Fatal().Err(err).Msg("adaptive-quiz api stopped")
	}
}

// run loads the environment, builds the application and serves until a signal arrives.
// envFile overrides configs/.env; it is ignored in production.
func run(ctx context.Context, envFile string) error {
	if err := loadEnv(envFile); err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg, err := config.Load(loadCtx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	instance, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	return instance.Run(ctx)
}

// loadEnv reads a dotenv file outside production. A missing default file is not an error;
// a missing explicit file is.
func loadEnv(envFile string) error {
	if os.Getenv("APP_ENV") == "production" {
		return nil
	}
	path := envFile
	if path == "" {
		path = defaultEnvFile
	}
	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case envFile == "" && errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("no .env file found; using process environment")
		return nil
	default:
		return fmt.Errorf("load env file %s: %w", path, err)
	}
}
