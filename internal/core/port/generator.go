package port

import "context"

// Generation is the structured output of one text-to-SQL call.
type Generation struct {
	SQL         string
	Assumptions []string
}

// SQLGenerator turns a prompt pair into a candidate SQL statement. The
// returned text is untrusted and must pass the safety gate before execution.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, system, user string) (*Generation, error)
}
