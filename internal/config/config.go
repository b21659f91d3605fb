package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the YAML config file looked up in the working directory and
// next to the executable.
const FileName = "tsugite.yaml"

type Config struct {
	// LLM provider.
	LLMBaseURL  string
	LLMModel    string
	EmbedModel  string
	APIKeyEnv   string // name of the env var holding the provider key
	Temperature float64

	// Database connection.
	DatabaseURL  string
	Dialect      string
	Schemas      []string // empty means all non-system schemas
	MaxRows      int      // row cap on ask/serve paths; eval runs unbounded
	QueryTimeout time.Duration

	// Safety gate and comparator.
	MaxLimit  int
	Precision int

	// Logging.
	LogLevel slog.Level

	// HTTP dashboard.
	HTTPAddr string

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool
	AuditLog    string // path to NDJSON audit log file, empty disables

	// DictionaryFile points at an optional YAML data dictionary whose
	// descriptions are merged into schema summaries. Empty disables it.
	DictionaryFile string
}

// APIKey resolves the provider key from the configured env var name.
func (c *Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Overrides holds CLI flag values. They win over every other source.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	LLMBaseURL  *string
	LLMModel    *string
	EmbedModel  *string
	APIKeyEnv   *string
	DatabaseURL *string
	Dialect     *string
	MaxRows     *int
	MaxLimit    *int
	Precision   *int
	LogLevel    *string
	HTTPAddr    *string
	AuditLog    *string
	OTelEnabled bool

	DictionaryFile *string

	QueryTimeout *time.Duration

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config by layering sources, lowest precedence first:
// defaults, executable-adjacent tsugite.yaml, ./tsugite.yaml, environment
// variables, CLI overrides. The result is validated.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	for _, path := range filePaths() {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		LLMBaseURL:          "http://localhost:1234/v1",
		LLMModel:            "openai/gpt-oss-20b",
		EmbedModel:          "text-embedding-nomic-embed-text-v1.5",
		Dialect:             "postgres",
		MaxRows:             1000,
		QueryTimeout:        30 * time.Second,
		MaxLimit:            100,
		Precision:           6,
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// filePaths returns candidate config files in ascending precedence:
// executable-adjacent first, working directory second.
func filePaths() []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), FileName))
	}
	paths = append(paths, FileName)
	return paths
}

// fileConfig is the YAML shape. Pointers distinguish absent keys so a later
// file only overrides what it sets.
type fileConfig struct {
	LLM struct {
		BaseURL    *string  `yaml:"base_url"`
		Model      *string  `yaml:"model"`
		EmbedModel *string  `yaml:"embed_model"`
		APIKeyEnv  *string  `yaml:"api_key_env"`
		Temp       *float64 `yaml:"temperature"`
	} `yaml:"llm"`
	DatabaseURL  *string  `yaml:"database_url"`
	Dialect      *string  `yaml:"dialect"`
	Schemas      []string `yaml:"schemas"`
	MaxRows      *int     `yaml:"max_rows"`
	QueryTimeout *string  `yaml:"query_timeout"`
	MaxLimit     *int     `yaml:"max_limit"`
	Precision    *int     `yaml:"precision"`
	LogLevel     *string  `yaml:"log_level"`
	HTTPAddr     *string  `yaml:"http_addr"`
	AuditLog     *string  `yaml:"audit_log"`
	OTelEnabled  *bool    `yaml:"otel_enabled"`
	Dictionary   *string  `yaml:"dictionary_file"`
	Pool         struct {
		MaxConns        *int32  `yaml:"max_conns"`
		MinConns        *int32  `yaml:"min_conns"`
		MaxConnLifetime *string `yaml:"max_conn_lifetime"`
	} `yaml:"pool"`
}

// applyFile merges one YAML file into cfg. A missing file is not an error.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.LLM.BaseURL != nil {
		cfg.LLMBaseURL = *fc.LLM.BaseURL
	}
	if fc.LLM.Model != nil {
		cfg.LLMModel = *fc.LLM.Model
	}
	if fc.LLM.EmbedModel != nil {
		cfg.EmbedModel = *fc.LLM.EmbedModel
	}
	if fc.LLM.APIKeyEnv != nil {
		cfg.APIKeyEnv = *fc.LLM.APIKeyEnv
	}
	if fc.LLM.Temp != nil {
		cfg.Temperature = *fc.LLM.Temp
	}
	if fc.DatabaseURL != nil {
		cfg.DatabaseURL = *fc.DatabaseURL
	}
	if fc.Dialect != nil {
		cfg.Dialect = *fc.Dialect
	}
	if len(fc.Schemas) > 0 {
		cfg.Schemas = fc.Schemas
	}
	if fc.MaxRows != nil {
		cfg.MaxRows = *fc.MaxRows
	}
	if fc.QueryTimeout != nil {
		d, err := time.ParseDuration(*fc.QueryTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: invalid query_timeout %q: %w", path, *fc.QueryTimeout, err)
		}
		cfg.QueryTimeout = d
	}
	if fc.MaxLimit != nil {
		cfg.MaxLimit = *fc.MaxLimit
	}
	if fc.Precision != nil {
		cfg.Precision = *fc.Precision
	}
	if fc.LogLevel != nil {
		level, err := parseLogLevel(*fc.LogLevel)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.LogLevel = level
	}
	if fc.HTTPAddr != nil {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	if fc.AuditLog != nil {
		cfg.AuditLog = *fc.AuditLog
	}
	if fc.OTelEnabled != nil {
		cfg.OTelEnabled = *fc.OTelEnabled
	}
	if fc.Dictionary != nil {
		cfg.DictionaryFile = *fc.Dictionary
	}
	if fc.Pool.MaxConns != nil {
		cfg.PoolMaxConns = *fc.Pool.MaxConns
	}
	if fc.Pool.MinConns != nil {
		cfg.PoolMinConns = *fc.Pool.MinConns
	}
	if fc.Pool.MaxConnLifetime != nil {
		d, err := time.ParseDuration(*fc.Pool.MaxConnLifetime)
		if err != nil {
			return fmt.Errorf("config file %s: invalid pool.max_conn_lifetime %q: %w", path, *fc.Pool.MaxConnLifetime, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("LLM_EMBED_MODEL"); v != "" {
		cfg.EmbedModel = v
	}
	if v := os.Getenv("LLM_API_KEY_ENV"); v != "" {
		cfg.APIKeyEnv = v
	}
	if v := os.Getenv("DIALECT"); v != "" {
		cfg.Dialect = v
	}

	if v := os.Getenv("MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROWS value %q: must be a positive integer", v)
		}
		cfg.MaxRows = n
	}

	if v := os.Getenv("MAX_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_LIMIT value %q: must be a positive integer", v)
		}
		cfg.MaxLimit = n
	}

	if v := os.Getenv("PRECISION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid PRECISION value %q: must be a non-negative integer", v)
		}
		cfg.Precision = n
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("SCHEMAS"); v != "" {
		cfg.Schemas = nil
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				cfg.Schemas = append(cfg.Schemas, s)
			}
		}
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("AUDIT_LOG"); v != "" {
		cfg.AuditLog = v
	}
	if v := os.Getenv("DICTIONARY_FILE"); v != "" {
		cfg.DictionaryFile = v
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return loadPoolEnvVars(cfg)
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of everything else.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.LLMBaseURL != nil {
		cfg.LLMBaseURL = *o.LLMBaseURL
	}
	if o.LLMModel != nil {
		cfg.LLMModel = *o.LLMModel
	}
	if o.EmbedModel != nil {
		cfg.EmbedModel = *o.EmbedModel
	}
	if o.APIKeyEnv != nil {
		cfg.APIKeyEnv = *o.APIKeyEnv
	}
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.Dialect != nil {
		cfg.Dialect = *o.Dialect
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.MaxLimit != nil {
		if *o.MaxLimit <= 0 {
			return fmt.Errorf("invalid --max-limit value: must be a positive integer")
		}
		cfg.MaxLimit = *o.MaxLimit
	}
	if o.Precision != nil {
		if *o.Precision < 0 {
			return fmt.Errorf("invalid --precision value: must be a non-negative integer")
		}
		cfg.Precision = *o.Precision
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}
	if o.DictionaryFile != nil {
		cfg.DictionaryFile = *o.DictionaryFile
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (set database_url in %s, DATABASE_URL env var, or --database-url flag)", FileName)
	}

	switch cfg.Dialect {
	case "postgres", "postgresql":
	default:
		return fmt.Errorf("invalid dialect %q: only postgres is supported", cfg.Dialect)
	}

	if cfg.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be a positive integer, got %d", cfg.MaxLimit)
	}
	if cfg.Precision < 0 {
		return fmt.Errorf("precision must be non-negative, got %d", cfg.Precision)
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("pool min_conns (%d) must not exceed max_conns (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", s)
	}
}
