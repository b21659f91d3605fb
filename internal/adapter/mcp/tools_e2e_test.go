package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hanehara/tsugite/internal/adapter/postgres"
	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
)

const e2eSchema = `
	CREATE TABLE customers (
		id    SERIAL PRIMARY KEY,
		name  TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE
	);

	CREATE TABLE orders (
		id          SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		amount      NUMERIC(10,2) NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	INSERT INTO customers (name, email) VALUES
		('alice', 'alice@example.com'),
		('bob', 'bob@example.com'),
		('carol', 'carol@example.com');

	INSERT INTO orders (customer_id, amount, created_at)
	SELECT
		(i % 3) + 1,
		(i * 10)::numeric(10,2),
		now() - (i || ' days')::interval
	FROM generate_series(1, 30) AS i;
`

// setupE2E starts a Postgres testcontainer, applies the schema, and returns a
// fully wired MCP server backed by real adapters. Only the SQL generator is
// stubbed; everything downstream of it is real.
func setupE2E(t *testing.T, gen *mockGenerator) *server.MCPServer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, e2eSchema)
	require.NoError(t, err)

	// Real adapters.
	executor := postgres.NewExecutor(pool, 10*time.Second, 1000)
	explorer := postgres.NewExplorer(pool, nil)

	// Real service, stubbed generator.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	askSvc := service.NewAskService(gen, executor, explorer, nil, logger, nil, nil, "postgres", 100)

	s := server.NewMCPServer("test-e2e", "0.0.1", server.WithToolCapabilities(true))
	RegisterTools(s, askSvc, explorer)
	return s
}

func TestE2E_MCPTools(t *testing.T) {
	gen := &mockGenerator{sql: "SELECT name FROM customers ORDER BY name"}
	s := setupE2E(t, gen)

	t.Run("ask", func(t *testing.T) {
		result := callTool(t, s, "ask", map[string]any{
			"question":   "list the customers",
			"introspect": true,
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var payload askPayload
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
		assert.Equal(t, "SELECT name FROM customers ORDER BY name LIMIT 100", payload.SQL)
		assert.Equal(t, []string{"name"}, payload.Columns)
		require.Len(t, payload.Rows, 3)
		assert.Equal(t, "alice", payload.Rows[0][0])
	})

	t.Run("query", func(t *testing.T) {
		result := callTool(t, s, "query", map[string]any{
			"sql": "SELECT count(*) FROM orders",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var res port.QueryResult
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
		require.Len(t, res.Rows, 1)
		// JSON round-trips int64 counts as float64.
		assert.EqualValues(t, 30, res.Rows[0][0])
	})

	t.Run("query/limit_applied", func(t *testing.T) {
		result := callTool(t, s, "query", map[string]any{
			"sql": "SELECT id FROM orders ORDER BY id LIMIT 500",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var res port.QueryResult
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
		assert.LessOrEqual(t, len(res.Rows), 100)
	})

	t.Run("query/rejects_writes", func(t *testing.T) {
		result := callTool(t, s, "query", map[string]any{
			"sql": "DELETE FROM orders",
		})
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "rejected")
	})

	t.Run("schema_summary", func(t *testing.T) {
		result := callTool(t, s, "schema_summary", nil)
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		text := toolText(result)
		assert.Contains(t, text, "TABLE customers")
		assert.Contains(t, text, "TABLE orders")
		assert.Contains(t, text, "amount numeric")
	})
}
