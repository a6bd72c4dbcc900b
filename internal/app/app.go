package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hnrs/adaptive-quiz/internal/config"
	"github.com/hnrs/adaptive-quiz/internal/db/migrations"
	"github.com/hnrs/adaptive-quiz/internal/db/repository"
	"github.com/hnrs/adaptive-quiz/internal/docindex"
	"github.com/hnrs/adaptive-quiz/internal/generation"
	"github.com/hnrs/adaptive-quiz/internal/llm"
	"github.com/hnrs/adaptive-quiz/internal/logging"
	"github.com/hnrs/adaptive-quiz/internal/report"
	"github.com/hnrs/adaptive-quiz/internal/server"
	"github.com/hnrs/adaptive-quiz/internal/session"
	ws "github.com/hnrs/adaptive-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, lock store, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps the logger, Postgres, the optional Redis lock store, the completion
// backend, the document index and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	var (
		redisClient *redis.Client
		locker      session.Locker
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		locker = session.NewRedisLocker(redisClient, logger)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; session locks are process-local")
		locker = session.NewLocalLocker()
	}

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
		pool.Close()
		return nil, fmt.Errorf("build completion client: %w", err)
	}

	indexes, err := docindex.NewStore(cfg.Storage.IndexDir, completion, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	tokens, err := cfg.Guardrails.Tokens()
	if err != nil {
		pool.Close()
		return nil, err
	}
	validator := generation.NewValidator(
		generation.WithBrandingTokens(tokens),
		generation.WithAnswerKeyPolicy(generation.AnswerKeyPolicy(cfg.Generation.AnswerKeyPolicy)),
	)
	scheduler := generation.NewScheduler(completion, validator, generation.SchedulerOptions{
		Parallel: cfg.Generation.ParallelBuckets,
	}, logger)

	renderer, err := report.NewPDFRenderer(cfg.Storage.ReportDir, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	links := report.NewLinks(report.LinkConfig{
		Secret:  []byte(cfg.Report.LinkSecret),
		TTL:     cfg.Report.LinkTTL,
		BaseURL: cfg.Report.BaseURL,
		Issuer:  cfg.Name,
	})

	repo := repository.NewPostgres(pool)
	ledger := session.NewService(session.ServiceDeps{
		Repo:      repo,
		Documents: documentSource{store: indexes},
		Generator: scheduler,
		Titles:    generation.NewTitler(completion, logger),
		Reports:   renderer,
		Links:     links,
		Locker:    locker,
	}, logger)
	monitor := session.NewMonitor(repo, locker, logger)

	handlers := session.NewHTTPHandlers(ledger, monitor, indexes, logger)
	stream := session.NewProctorStream(monitor, ws.NewHub(logger), server.NewUpgrader(cfg.CORS), logger)
	monitor.SetNotifier(stream)

	apiServer := server.NewHTTPServer(cfg, logger, server.Dependencies{Pool: pool, Redis: redisClient}, func(mux *http.ServeMux) {
		handlers.Register(mux)
		mux.HandleFunc("GET /ws/proctor", stream.HandleWebSocket)
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) { _ = db.Close() }(db)
	if err := migrations.Up(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		a.close()
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.close()
	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) close() {
	a.pool.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}

// documentSource resolves document hashes against the on-disk index store.
type documentSource struct {
	store *docindex.Store
}

func (d documentSource) Open(ctx context.Context, ref string) (session.Document, error) {
	ix, err := d.store.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	return ix, nil
}
