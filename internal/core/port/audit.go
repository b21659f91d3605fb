package port

import "context"

// AuditEntry captures one question's trip through generation, the safety
// gate, and execution.
type AuditEntry struct {
	Question      string
	SQL           string
	GuardRejected bool
	RowsReturned  int
	DurationMS    int64
	Err           error
}

// QueryAuditor records audit entries. Implementations must not fail the
// request path on audit I/O errors.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
}
