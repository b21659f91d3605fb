package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/hanehara/tsugite"

// Instruments holds pre-created OTel metric instruments. It satisfies
// port.Instrumentation.
type Instruments struct {
	GenerationCount metric.Int64Counter
	GuardRejections metric.Int64Counter
	QueryErrors     metric.Int64Counter
	QueryDuration   metric.Float64Histogram
	CaseDuration    metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	generationCount, _ := meter.Int64Counter("tsugite.generation.count",
		metric.WithDescription("Total number of SQL generations requested from the model"),
	)
	guardRejections, _ := meter.Int64Counter("tsugite.guard.rejections",
		metric.WithDescription("Total number of generated statements rejected by the safety gate"),
	)
	queryErrors, _ := meter.Int64Counter("tsugite.query.errors",
		metric.WithDescription("Total number of failed SQL executions"),
	)
	queryDuration, _ := meter.Float64Histogram("tsugite.query.duration",
		metric.WithDescription("SQL query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	caseDuration, _ := meter.Float64Histogram("tsugite.eval.case.duration",
		metric.WithDescription("End-to-end evaluation case duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		GenerationCount: generationCount,
		GuardRejections: guardRejections,
		QueryErrors:     queryErrors,
		QueryDuration:   queryDuration,
		CaseDuration:    caseDuration,
	}
}

func (i *Instruments) IncrementGenerationCount(ctx context.Context) {
	i.GenerationCount.Add(ctx, 1)
}

func (i *Instruments) IncrementGuardRejections(ctx context.Context) {
	i.GuardRejections.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) RecordCaseDuration(ctx context.Context, ms float64) {
	i.CaseDuration.Record(ctx, ms)
}
