package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	IncrementGenerationCount(ctx context.Context)
	IncrementGuardRejections(ctx context.Context)
	IncrementQueryErrors(ctx context.Context)
	RecordQueryDuration(ctx context.Context, ms float64)
	RecordCaseDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) IncrementGenerationCount(context.Context)     {}
func (NoopInstrumentation) IncrementGuardRejections(context.Context)     {}
func (NoopInstrumentation) IncrementQueryErrors(context.Context)         {}
func (NoopInstrumentation) RecordQueryDuration(context.Context, float64) {}
func (NoopInstrumentation) RecordCaseDuration(context.Context, float64)  {}
