package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hanehara/tsugite/internal/core/domain"
	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/prompt"
)

// AskService turns one natural-language question into guarded SQL and rows:
// prompt → generator → safety gate → executor.
type AskService struct {
	generator port.SQLGenerator
	executor  port.QueryExecutor
	explorer  port.SchemaExplorer // nil disables introspection
	auditor   port.QueryAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
	retriever port.ContextRetriever // nil disables retrieval augmentation

	dialect  string
	maxLimit int
}

// AskResult carries everything a caller may want to show: the raw model
// output, the guarded SQL actually executed, and the rows.
type AskResult struct {
	Question    string
	RawSQL      string
	SafeSQL     string
	Assumptions []string
	Result      *port.QueryResult
}

func NewAskService(
	generator port.SQLGenerator,
	executor port.QueryExecutor,
	explorer port.SchemaExplorer,
	auditor port.QueryAuditor,
	logger *slog.Logger,
	tracer trace.Tracer,
	inst port.Instrumentation,
	dialect string,
	maxLimit int,
) *AskService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if dialect == "" {
		dialect = "postgres"
	}
	if maxLimit <= 0 {
		maxLimit = domain.DefaultMaxLimit
	}
	return &AskService{
		generator: generator,
		executor:  executor,
		explorer:  explorer,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
		dialect:   dialect,
		maxLimit:  maxLimit,
	}
}

// UseRetriever enables retrieval-augmented prompts. Retrieval is best
// effort: a failing retriever logs a warning and the ask proceeds without
// context.
func (s *AskService) UseRetriever(r port.ContextRetriever) {
	s.retriever = r
}

// Ask answers one question. Guard rejections come back as a wrapped
// *domain.RejectionError so callers can distinguish policy verdicts from
// infrastructure failures.
func (s *AskService) Ask(ctx context.Context, question string, introspect bool) (*AskResult, error) {
	ctx, span := s.tracer.Start(ctx, "AskService.Ask",
		trace.WithAttributes(attribute.String("tsugite.question", question)),
	)
	defer span.End()

	schema, err := s.schemaText(ctx, introspect)
	if err != nil {
		return nil, s.fail(ctx, span, question, err)
	}

	bundle := prompt.Build(question, prompt.Options{
		Dialect:  s.dialect,
		Schema:   schema,
		Context:  s.contextSnippets(ctx, question),
		MaxLimit: s.maxLimit,
	})

	gen, err := s.generator.GenerateSQL(ctx, bundle.System, bundle.User)
	if err != nil {
		return nil, s.fail(ctx, span, question, fmt.Errorf("generating sql: %w", err))
	}
	s.inst.IncrementGenerationCount(ctx)
	span.SetAttributes(attribute.String("db.statement.raw", gen.SQL))

	safeSQL, err := domain.Guard(gen.SQL, s.dialect, s.maxLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "guard rejected generated sql",
			slog.String("question", question),
			slog.String("sql", gen.SQL),
			slog.String("reason", err.Error()),
		)
		s.inst.IncrementGuardRejections(ctx)
		s.audit(ctx, question, gen.SQL, true, 0, 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("guard: %w", err)
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, safeSQL)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))
	rowCount := 0
	if result != nil {
		rowCount = len(result.Rows)
	}
	s.audit(ctx, question, safeSQL, false, rowCount, durationMS, err)

	if err != nil {
		s.inst.IncrementQueryErrors(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("executing guarded sql: %w", err)
	}

	span.SetAttributes(attribute.Int("db.response.rows", rowCount))

	return &AskResult{
		Question:    question,
		RawSQL:      gen.SQL,
		SafeSQL:     safeSQL,
		Assumptions: gen.Assumptions,
		Result:      result,
	}, nil
}

// Query runs caller-supplied SQL through the safety gate and executes it.
// It serves transports that accept raw SQL (MCP query tool, dashboard).
func (s *AskService) Query(ctx context.Context, sql string) (*port.QueryResult, error) {
	ctx, span := s.tracer.Start(ctx, "AskService.Query")
	defer span.End()

	safeSQL, err := domain.Guard(sql, s.dialect, s.maxLimit)
	if err != nil {
		s.inst.IncrementGuardRejections(ctx)
		s.audit(ctx, "", sql, true, 0, 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("guard: %w", err)
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, safeSQL)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))
	rowCount := 0
	if result != nil {
		rowCount = len(result.Rows)
	}
	s.audit(ctx, "", safeSQL, false, rowCount, durationMS, err)

	if err != nil {
		s.inst.IncrementQueryErrors(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("executing guarded sql: %w", err)
	}
	return result, nil
}

// IsGuardRejection reports whether err is a safety-gate verdict.
func IsGuardRejection(err error) bool {
	var rej *domain.RejectionError
	return errors.As(err, &rej)
}

func (s *AskService) contextSnippets(ctx context.Context, question string) []string {
	if s.retriever == nil {
		return nil
	}
	snippets, err := s.retriever.RetrieveContext(ctx, question)
	if err != nil {
		s.logger.WarnContext(ctx, "context retrieval failed",
			slog.String("question", question),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return snippets
}

func (s *AskService) schemaText(ctx context.Context, introspect bool) (string, error) {
	if !introspect || s.explorer == nil {
		return "", nil
	}
	summary, err := s.explorer.SchemaSummary(ctx)
	if err != nil {
		return "", fmt.Errorf("introspecting schema: %w", err)
	}
	return summary, nil
}

func (s *AskService) audit(ctx context.Context, question, sql string, rejected bool, rows int, durationMS int64, err error) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, port.AuditEntry{
		Question:      question,
		SQL:           sql,
		GuardRejected: rejected,
		RowsReturned:  rows,
		DurationMS:    durationMS,
		Err:           err,
	})
}

func (s *AskService) fail(ctx context.Context, span trace.Span, question string, err error) error {
	s.logger.ErrorContext(ctx, "ask failed",
		slog.String("question", question),
		slog.String("error", err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
