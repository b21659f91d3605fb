package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanehara/tsugite/internal/adapter/dictionary"
	"github.com/hanehara/tsugite/internal/adapter/llm"
	"github.com/hanehara/tsugite/internal/adapter/postgres"
	"github.com/hanehara/tsugite/internal/audit"
	"github.com/hanehara/tsugite/internal/config"
	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
	"github.com/hanehara/tsugite/internal/telemetry"
)

// providerPresets map --provider names to connection settings, matching the
// two backends this tool is typically pointed at: an LM Studio-style local
// server and Groq's hosted API.
var providerPresets = map[string]struct {
	baseURL   string
	apiKeyEnv string
}{
	"local": {baseURL: "http://localhost:1234/v1"},
	"groq":  {baseURL: "https://api.groq.com/openai/v1", apiKeyEnv: "GROQ_API_KEY"},
}

// buildOverrides converts the shared CLI flags into config overrides.
func buildOverrides() (config.Overrides, error) {
	var o config.Overrides
	if flagDatabaseURL != "" {
		o.DatabaseURL = &flagDatabaseURL
	}
	if flagLogLevel != "" {
		o.LogLevel = &flagLogLevel
	}
	if flagAuditLog != "" {
		o.AuditLog = &flagAuditLog
	}
	if flagDictionary != "" {
		o.DictionaryFile = &flagDictionary
	}
	o.OTelEnabled = flagOTel

	if flagProvider != "" {
		preset, ok := providerPresets[flagProvider]
		if !ok {
			return o, fmt.Errorf("unknown provider %q: must be local or groq", flagProvider)
		}
		o.LLMBaseURL = &preset.baseURL
		if preset.apiKeyEnv != "" {
			o.APIKeyEnv = &preset.apiKeyEnv
		}
	}
	if flagBaseURL != "" {
		o.LLMBaseURL = &flagBaseURL
	}
	if flagModel != "" {
		o.LLMModel = &flagModel
	}
	return o, nil
}

// app holds the wired application for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	client   *llm.Client
	explorer port.SchemaExplorer
	tracer   trace.Tracer
	inst     port.Instrumentation
	auditor  port.QueryAuditor

	telemetryProvider *telemetry.Provider
	fileAuditor       *audit.FileAuditor
}

// newApp loads config and wires the shared pieces.
func newApp(ctx context.Context, overrides config.Overrides) (*app, error) {
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout belongs to command output (and to the MCP
	// stdio transport).
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracer:  telemetry.NoopTracer(),
		inst:    port.NoopInstrumentation{},
		auditor: audit.NoopAuditor{},
	}

	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "tsugite", version)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.telemetryProvider = provider
		a.tracer = otel.Tracer("github.com/hanehara/tsugite")
		a.inst = telemetry.NewInstruments()
	}

	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.fileAuditor = fa
		a.auditor = fa
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.pool = pool

	a.explorer = postgres.NewExplorer(pool, cfg.Schemas)
	if cfg.DictionaryFile != "" {
		dict, err := dictionary.LoadFromFile(cfg.DictionaryFile)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("loading data dictionary: %w", err)
		}
		a.explorer = dictionary.NewExplorer(a.explorer, dict)
	}
	a.client = llm.NewClient(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.APIKey(),
		Model:       cfg.LLMModel,
		EmbedModel:  cfg.EmbedModel,
		Temperature: cfg.Temperature,
	}, logger)

	return a, nil
}

// executor builds a query executor. maxRows 0 leaves result collection
// unbounded (the eval harness compares full result sets).
func (a *app) executor(maxRows int) *postgres.Executor {
	return postgres.NewExecutor(a.pool, a.cfg.QueryTimeout, maxRows)
}

func (a *app) askService(maxRows, maxLimit int) *service.AskService {
	return service.NewAskService(
		a.client,
		a.executor(maxRows),
		a.explorer,
		a.auditor,
		a.logger,
		a.tracer,
		a.inst,
		a.cfg.Dialect,
		maxLimit,
	)
}

func (a *app) close(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.fileAuditor != nil {
		_ = a.fileAuditor.Close()
	}
	if a.telemetryProvider != nil {
		_ = a.telemetryProvider.Shutdown(ctx)
	}
}
