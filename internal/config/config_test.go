package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Valid(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, 100, cfg.MaxLimit)
	assert.Equal(t, 6, cfg.Precision)
	assert.Equal(t, 1000, cfg.MaxRows)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL")
}

func TestLoad_EnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("LLM_BASE_URL", "https://api.groq.com/openai/v1")
	t.Setenv("LLM_MODEL", "llama-3.3-70b-versatile")
	t.Setenv("LLM_API_KEY_ENV", "GROQ_API_KEY")
	t.Setenv("MAX_LIMIT", "50")
	t.Setenv("PRECISION", "4")
	t.Setenv("QUERY_TIMEOUT", "45s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SCHEMAS", "public, sales")
	t.Setenv("AUDIT_LOG", "/tmp/tsugite-audit.jsonl")
	t.Setenv("DICTIONARY_FILE", "/etc/tsugite/dictionary.yaml")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLMBaseURL)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLMModel)
	assert.Equal(t, "GROQ_API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, 50, cfg.MaxLimit)
	assert.Equal(t, 4, cfg.Precision)
	assert.Equal(t, 45*time.Second, cfg.QueryTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"public", "sales"}, cfg.Schemas)
	assert.Equal(t, "/tmp/tsugite-audit.jsonl", cfg.AuditLog)
	assert.Equal(t, "/etc/tsugite/dictionary.yaml", cfg.DictionaryFile)
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	dir := t.TempDir()
	yml := `
database_url: postgres://file/db
dialect: postgres
max_limit: 20
precision: 2
llm:
  base_url: http://file-host:1234/v1
  model: file-model
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0644))
	t.Chdir(dir)

	// Env beats file.
	t.Setenv("MAX_LIMIT", "60")
	// Flag beats env.
	precision := 8
	cfg, err := Load(Overrides{Precision: &precision})
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL, "file value survives when nothing overrides it")
	assert.Equal(t, "http://file-host:1234/v1", cfg.LLMBaseURL)
	assert.Equal(t, "file-model", cfg.LLMModel)
	assert.Equal(t, 60, cfg.MaxLimit, "env var wins over file")
	assert.Equal(t, 8, cfg.Precision, "flag wins over env and file")
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("max_limit: [oops"), 0644))
	t.Chdir(dir)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	url := "postgres://flag/db"
	maxRows := 500
	timeout := 5 * time.Second
	cfg, err := Load(Overrides{
		DatabaseURL:  &url,
		MaxRows:      &maxRows,
		QueryTimeout: &timeout,
		OTelEnabled:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://flag/db", cfg.DatabaseURL)
	assert.Equal(t, 500, cfg.MaxRows)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_InvalidDialect(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("DIALECT", "mysql")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialect")
}

func TestLoad_InvalidMaxLimit(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("MAX_LIMIT", "-1")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_LIMIT")
}

func TestLoad_InvalidQueryTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("QUERY_TIMEOUT", "not-a-duration")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUERY_TIMEOUT")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestLoad_PoolBounds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("POOL_MIN_CONNS", "10")
	t.Setenv("POOL_MAX_CONNS", "5")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_conns")
}

func TestAPIKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg := &Config{APIKeyEnv: "GROQ_API_KEY"}
	assert.Equal(t, "gsk_test", cfg.APIKey())

	cfg.APIKeyEnv = ""
	assert.Empty(t, cfg.APIKey())
}
