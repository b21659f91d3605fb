package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
)

// --- mocks ---

type mockGenerator struct {
	sql string
	err error
}

func (m *mockGenerator) GenerateSQL(_ context.Context, _, _ string) (*port.Generation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &port.Generation{SQL: m.sql}, nil
}

type mockExecutor struct {
	result  *port.QueryResult
	err     error
	lastSQL string // captures the SQL passed to Execute
}

func (m *mockExecutor) Execute(_ context.Context, sql string) (*port.QueryResult, error) {
	m.lastSQL = sql
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &port.QueryResult{}, nil
}

type mockExplorer struct {
	summary string
	err     error
}

func (m *mockExplorer) ListTables(context.Context) ([]port.TableInfo, error) { return nil, m.err }
func (m *mockExplorer) SchemaSummary(context.Context) (string, error)        { return m.summary, m.err }

// --- helpers ---

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func setupServer(gen *mockGenerator, executor *mockExecutor, explorer *mockExplorer) *server.MCPServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	askSvc := service.NewAskService(gen, executor, explorer, nil, logger, nil, nil, "postgres", 100)

	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true))
	RegisterTools(s, askSvc, explorer)
	return s
}

// --- tests ---

func TestAskTool_HappyPath(t *testing.T) {
	gen := &mockGenerator{sql: "select name from customers"}
	executor := &mockExecutor{result: &port.QueryResult{
		Columns: []string{"name"},
		Rows:    [][]any{{"alice"}},
	}}
	s := setupServer(gen, executor, &mockExplorer{})

	result := callTool(t, s, "ask", map[string]any{"question": "who are the customers?"})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))

	var payload askPayload
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, "select name from customers LIMIT 100", payload.SQL)
	assert.Equal(t, []string{"name"}, payload.Columns)
	require.Len(t, payload.Rows, 1)
}

func TestAskTool_MissingQuestion(t *testing.T) {
	s := setupServer(&mockGenerator{sql: "select 1"}, &mockExecutor{}, &mockExplorer{})

	result := callTool(t, s, "ask", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "question is required")
}

func TestAskTool_GuardRejection(t *testing.T) {
	gen := &mockGenerator{sql: "TRUNCATE customers"}
	executor := &mockExecutor{}
	s := setupServer(gen, executor, &mockExplorer{})

	result := callTool(t, s, "ask", map[string]any{"question": "clear the table"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "rejected")
	assert.Empty(t, executor.lastSQL, "rejected SQL must not execute")
}

func TestAskTool_GeneratorError(t *testing.T) {
	gen := &mockGenerator{err: fmt.Errorf("model unavailable")}
	s := setupServer(gen, &mockExecutor{}, &mockExplorer{})

	result := callTool(t, s, "ask", map[string]any{"question": "q"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "ask failed")
}

func TestQueryTool_HappyPath(t *testing.T) {
	executor := &mockExecutor{result: &port.QueryResult{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{float64(1), "alice"}},
	}}
	s := setupServer(&mockGenerator{}, executor, &mockExplorer{})

	result := callTool(t, s, "query", map[string]any{"sql": "SELECT id, name FROM users"})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))

	assert.Equal(t, "SELECT id, name FROM users LIMIT 100", executor.lastSQL,
		"gate caps the statement before execution")

	var res port.QueryResult
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
	assert.Equal(t, []string{"id", "name"}, res.Columns)
}

func TestQueryTool_MissingSQL(t *testing.T) {
	s := setupServer(&mockGenerator{}, &mockExecutor{}, &mockExplorer{})

	result := callTool(t, s, "query", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "sql is required")
}

func TestQueryTool_GuardRejection(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(&mockGenerator{}, executor, &mockExplorer{})

	result := callTool(t, s, "query", map[string]any{"sql": "DROP TABLE users"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "rejected")
	assert.Empty(t, executor.lastSQL)
}

func TestQueryTool_ExecutorError(t *testing.T) {
	executor := &mockExecutor{err: fmt.Errorf("connection timeout")}
	s := setupServer(&mockGenerator{}, executor, &mockExplorer{})

	result := callTool(t, s, "query", map[string]any{"sql": "SELECT 1"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "query failed")
}

func TestSchemaSummaryTool(t *testing.T) {
	explorer := &mockExplorer{summary: "TABLE customers (\n  id integer,\n);"}
	s := setupServer(&mockGenerator{}, &mockExecutor{}, explorer)

	result := callTool(t, s, "schema_summary", nil)
	require.False(t, result.IsError)
	assert.Contains(t, toolText(result), "TABLE customers")
}

func TestSchemaSummaryTool_Error(t *testing.T) {
	explorer := &mockExplorer{err: fmt.Errorf("permission denied")}
	s := setupServer(&mockGenerator{}, &mockExecutor{}, explorer)

	result := callTool(t, s, "schema_summary", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "failed to summarize schema")
}
