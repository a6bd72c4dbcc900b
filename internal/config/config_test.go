package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PG_HOST", "localhost")
	t.Setenv("PG_USER", "quiz")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DATABASE", "quiz")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "adaptive-quiz", cfg.Name)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "llama3.2:1b", cfg.AI.Model)
	assert.Equal(t, 5*time.Second, cfg.AI.HealthTimeout)
	assert.Equal(t, 60*time.Second, cfg.AI.CompletionTimeout)
	assert.Equal(t, "repair", cfg.Generation.AnswerKeyPolicy)
	assert.Equal(t, 24*time.Hour, cfg.Report.LinkTTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Contains(t, cfg.Guardrails.BrandingTokens, "mission")
	assert.Equal(t, "host=localhost port=5432 user=quiz password=secret dbname=quiz sslmode=disable", cfg.Postgres.DSN())
}

func TestLoadMissingPostgres(t *testing.T) {
	t.Setenv("PG_HOST", "")
	_, err := Load(context.Background())
	assert.Error(t, err)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"AI_PROVIDER":                  "gemini",
		"GENERATION_ANSWER_KEY_POLICY": "ignore",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)
			_, err := Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestLoadAnthropicNeedsKey(t *testing.T) {
	setRequired(t)
	t.Setenv("AI_PROVIDER", "anthropic")

	_, err := Load(context.Background())
	assert.ErrorContains(t, err, "AI_API_KEY")
}

func TestGuardrailTokensMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrails.yaml")
	require.NoError(t, os.WriteFile(path, []byte("branding_tokens:\n  - Acme Institute\n  - mission\n"), 0o644))

	g := Guardrails{BrandingTokens: []string{"Mission", " vision "}, TokenFile: path}
	tokens, err := g.Tokens()
	require.NoError(t, err)
	assert.Equal(t, []string{"mission", "vision", "acme institute"}, tokens)
}

func TestGuardrailTokensBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrails.yaml")
	require.NoError(t, os.WriteFile(path, []byte("branding_tokens: [unclosed"), 0o644))

	_, err := Guardrails{TokenFile: path}.Tokens()
	assert.Error(t, err)

	_, err = Guardrails{TokenFile: filepath.Join(t.TempDir(), "missing.yaml")}.Tokens()
	assert.Error(t, err)
}
