package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"adaptive-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres   Postgres
	Redis      Redis
	AI         AI
	Generation Generation
	Guardrails Guardrails
	Storage    Storage
	Report     Report
	CORS       CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host        string `env:"PG_HOST,notEmpty"`
	Port        int    `env:"PG_PORT" envDefault:"5432"`
	User        string `env:"PG_USER,notEmpty"`
	Password    string `env:"PG_PASSWORD,notEmpty"`
	Database    string `env:"PG_DATABASE,notEmpty"`
	SSLMode     string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns    int    `env:"PG_MAX_CONNS" envDefault:"10" validate:"gt=0"`
	AutoMigrate bool   `env:"PG_AUTO_MIGRATE" envDefault:"false"`
}

// DSN renders the keyword/value connection string understood by pgx.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis backs the cross-replica session lock. Empty Addr falls back to in-process locking.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// AI selects the completion backend.
type AI struct {
	Provider          string        `env:"AI_PROVIDER" envDefault:"ollama" validate:"oneof=ollama anthropic mock"`
	BaseURL           string        `env:"AI_BASE_URL" envDefault:"http://localhost:11434"`
	Model             string        `env:"AI_MODEL" envDefault:"llama3.2:1b"`
	APIKey            string        `env:"AI_API_KEY" envDefault:""`
	Temperature       float32       `env:"AI_TEMPERATURE" envDefault:"0.7" validate:"gte=0,lte=2"`
	MaxTokens         int           `env:"AI_MAX_TOKENS" envDefault:"1024" validate:"gt=0"`
	HealthTimeout     time.Duration `env:"AI_HEALTH_TIMEOUT" envDefault:"5s"`
	CompletionTimeout time.Duration `env:"AI_COMPLETION_TIMEOUT" envDefault:"60s"`
}

// Generation tunes the question generation loop.
type Generation struct {
	AnswerKeyPolicy string `env:"GENERATION_ANSWER_KEY_POLICY" envDefault:"repair" validate:"oneof=repair discard"`
	ParallelBuckets bool   `env:"GENERATION_PARALLEL_BUCKETS" envDefault:"false"`
}

// Storage holds on-disk locations for document indexes and rendered reports.
type Storage struct {
	IndexDir  string `env:"INDEX_DIR" envDefault:"data/indexes"`
	ReportDir string `env:"REPORT_DIR" envDefault:"data/reports"`
}

// Report configures signed report download links. An empty secret disables signing.
type Report struct {
	LinkSecret string        `env:"REPORT_LINK_SECRET" envDefault:""`
	LinkTTL    time.Duration `env:"REPORT_LINK_TTL" envDefault:"24h"`
	BaseURL    string        `env:"REPORT_BASE_URL" envDefault:""`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

var validate = validator.New()

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.StructCtx(ctx, cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.AI.Provider == "anthropic" && cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("validate config: AI_API_KEY is required for the anthropic provider")
	}
	return cfg, nil
}
