package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hanehara/tsugite/internal/core/domain"
	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/prompt"
)

// Case is one evaluation input: a question and the trusted reference SQL
// whose results define the expected answer.
type Case struct {
	ID           int    `json:"id"`
	Question     string `json:"question"`
	ReferenceSQL string `json:"reference_sql"`
}

// CaseOutcome is the per-case verdict. Every case yields exactly one outcome
// regardless of what failed along the way.
type CaseOutcome struct {
	ID            int     `json:"id"`
	OKExec        bool    `json:"ok_exec"`
	OKMatch       bool    `json:"ok_match"`
	GuardRejected bool    `json:"guard_rejected"`
	Error         *string `json:"error"`
}

// Mismatch holds both result sets for a case whose execution succeeded but
// whose rows were not leniently equal.
type Mismatch struct {
	CaseID       int
	Question     string
	GeneratedSQL string
	ReferenceSQL string
	Generated    *port.QueryResult
	Expected     *port.QueryResult
}

// Summary aggregates a batch.
type Summary struct {
	Cases         int
	ExecSuccess   int
	Match         int
	GuardRejected int
}

func (s Summary) ExecRatio() float64  { return ratio(s.ExecSuccess, s.Cases) }
func (s Summary) MatchRatio() float64 { return ratio(s.Match, s.Cases) }
func (s Summary) GuardRatio() float64 { return ratio(s.GuardRejected, s.Cases) }

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Report is the full product of one evaluation run.
type Report struct {
	Outcomes   []CaseOutcome
	Mismatches []Mismatch
	Summary    Summary
}

// LoadCases reads line-delimited JSON cases, skipping blank lines.
func LoadCases(r io.Reader) ([]Case, error) {
	var cases []Case
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("parsing case on line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	return cases, nil
}

// EvalService runs the batch harness: for every case it executes the
// reference SQL, generates a candidate, guards it, executes it, and compares
// the two result sets leniently. A failure at any step is that case's
// outcome, never the batch's.
type EvalService struct {
	generator port.SQLGenerator
	executor  port.QueryExecutor
	explorer  port.SchemaExplorer
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation

	dialect   string
	maxLimit  int
	precision int32

	// CollectMismatches keeps both result sets for post-run inspection.
	CollectMismatches bool
}

func NewEvalService(
	generator port.SQLGenerator,
	executor port.QueryExecutor,
	explorer port.SchemaExplorer,
	logger *slog.Logger,
	tracer trace.Tracer,
	inst port.Instrumentation,
	dialect string,
	maxLimit int,
	precision int32,
) *EvalService {
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
	if precision <= 0 {
		precision = domain.DefaultPrecision
	}
	return &EvalService{
		generator: generator,
		executor:  executor,
		explorer:  explorer,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
		dialect:   dialect,
		maxLimit:  maxLimit,
		precision: precision,
	}
}

// Run evaluates every case and returns the full report.
func (s *EvalService) Run(ctx context.Context, cases []Case, introspect bool) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "EvalService.Run",
		trace.WithAttributes(attribute.Int("tsugite.eval.cases", len(cases))),
	)
	defer span.End()

	schema := ""
	if introspect && s.explorer != nil {
		summary, err := s.explorer.SchemaSummary(ctx)
		if err != nil {
			return nil, fmt.Errorf("introspecting schema: %w", err)
		}
		schema = summary
	}

	report := &Report{}
	for _, c := range cases {
		start := time.Now()
		outcome, mismatch := s.runCase(ctx, c, schema)
		s.inst.RecordCaseDuration(ctx, float64(time.Since(start).Milliseconds()))

		report.Outcomes = append(report.Outcomes, outcome)
		if mismatch != nil && s.CollectMismatches {
			report.Mismatches = append(report.Mismatches, *mismatch)
		}
	}

	report.Summary = Summarize(report.Outcomes)
	return report, nil
}

func (s *EvalService) runCase(ctx context.Context, c Case, schema string) (CaseOutcome, *Mismatch) {
	s.logger.InfoContext(ctx, "evaluating case",
		slog.Int("id", c.ID),
		slog.String("question", c.Question),
	)

	expected, err := s.executor.Execute(ctx, c.ReferenceSQL)
	if err != nil {
		return failedOutcome(c.ID, fmt.Sprintf("ref_sql error: %v", err)), nil
	}

	bundle := prompt.Build(c.Question, prompt.Options{
		Dialect:  s.dialect,
		Schema:   schema,
		MaxLimit: s.maxLimit,
	})

	gen, err := s.generator.GenerateSQL(ctx, bundle.System, bundle.User)
	if err != nil {
		return failedOutcome(c.ID, fmt.Sprintf("llm error: %v", err)), nil
	}
	s.inst.IncrementGenerationCount(ctx)

	safeSQL, err := domain.Guard(gen.SQL, s.dialect, s.maxLimit)
	if err != nil {
		s.inst.IncrementGuardRejections(ctx)
		out := failedOutcome(c.ID, fmt.Sprintf("guard: %v", err))
		out.GuardRejected = true
		return out, nil
	}

	actual, err := s.executor.Execute(ctx, safeSQL)
	if err != nil {
		s.inst.IncrementQueryErrors(ctx)
		return failedOutcome(c.ID, fmt.Sprintf("exec: %v", err)), nil
	}

	ok := domain.LenientEqual(expected.Rows, actual.Rows, s.precision, true)
	outcome := CaseOutcome{ID: c.ID, OKExec: true, OKMatch: ok}
	if ok {
		return outcome, nil
	}
	return outcome, &Mismatch{
		CaseID:       c.ID,
		Question:     c.Question,
		GeneratedSQL: safeSQL,
		ReferenceSQL: c.ReferenceSQL,
		Generated:    actual,
		Expected:     expected,
	}
}

func failedOutcome(id int, msg string) CaseOutcome {
	return CaseOutcome{ID: id, Error: &msg}
}

// Summarize counts outcome flags into a batch summary.
func Summarize(outcomes []CaseOutcome) Summary {
	s := Summary{Cases: len(outcomes)}
	for _, o := range outcomes {
		if o.OKExec {
			s.ExecSuccess++
		}
		if o.OKMatch {
			s.Match++
		}
		if o.GuardRejected {
			s.GuardRejected++
		}
	}
	return s
}
