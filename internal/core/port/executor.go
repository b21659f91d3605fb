package port

import "context"

// QueryResult carries column names and row tuples in result order. Rows are
// positional because result comparison is shape-based, never name-based.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// QueryExecutor runs already-guarded SQL against the live database.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*QueryResult, error)
}
