package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanehara/tsugite/internal/core/port"
)

// Executor runs SQL inside a read-only transaction with a server-side
// statement timeout. It does not validate its input — gating generated SQL
// is the safety gate's job, and reference SQL from evaluation cases is
// trusted by definition.
type Executor struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	maxRows      int // 0 means unbounded (evaluation reference queries)
}

func NewExecutor(pool *pgxpool.Pool, queryTimeout time.Duration, maxRows int) *Executor {
	return &Executor{
		pool:         pool,
		queryTimeout: queryTimeout,
		maxRows:      maxRows,
	}
}

func (e *Executor) Execute(ctx context.Context, sql string) (*port.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Enforce the timeout at the database level so PostgreSQL cancels the
	// query server-side even if the Go context is cancelled first.
	// SET LOCAL scopes to this transaction only.
	timeoutMS := e.queryTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, fmt.Errorf("setting statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	result, err := rowsToResult(rows, e.maxRows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return result, nil
}
