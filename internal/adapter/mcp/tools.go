package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
)

// Server metadata
const serverName = "tsugite"

// Tool descriptions
const (
	descAsk = "Answer a natural-language question about the database. " +
		"The question is turned into a single SELECT statement, checked by the safety gate, " +
		"capped with a LIMIT, executed read-only, and returned with the SQL and the model's assumptions. " +
		"Prefer this tool when you don't know the schema; set introspect to true to ground the " +
		"generation in the live schema."

	descAskParam = "Natural-language question to answer"

	descQuery = "Execute a read-only SELECT against the database. " +
		"The statement must pass the safety gate: a single SELECT, no DML/DDL, no transaction control, " +
		"no locks. A server-side LIMIT is enforced. Results come back as columns plus row tuples."

	descQueryParam = "SQL query to execute (single SELECT statement only)"

	descSchemaSummary = "Return a compact text summary of the database schema: " +
		"one TABLE block per base table with column names and types. " +
		"Use this before writing SQL by hand."
)

func RegisterTools(s *server.MCPServer, ask *service.AskService, explorer port.SchemaExplorer) {
	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription(descAsk),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description(descAskParam),
			),
			mcp.WithBoolean("introspect",
				mcp.Description("Ground generation in the live schema. Defaults to false."),
			),
		),
		askHandler(ask),
	)

	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQueryParam),
			),
		),
		queryHandler(ask),
	)

	s.AddTool(
		mcp.NewTool("schema_summary",
			mcp.WithDescription(descSchemaSummary),
		),
		schemaSummaryHandler(explorer),
	)
}

// askPayload is the JSON shape returned by the ask tool.
type askPayload struct {
	SQL         string   `json:"sql"`
	Assumptions []string `json:"assumptions,omitempty"`
	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
}

func askHandler(ask *service.AskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, ok := request.GetArguments()["question"].(string)
		if !ok || question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		introspect, _ := request.GetArguments()["introspect"].(bool)

		res, err := ask.Ask(ctx, question, introspect)
		if err != nil {
			if service.IsGuardRejection(err) {
				return mcp.NewToolResultError(fmt.Sprintf("generated SQL was rejected: %v", err)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		data, err := json.Marshal(askPayload{
			SQL:         res.SafeSQL,
			Assumptions: res.Assumptions,
			Columns:     res.Result.Columns,
			Rows:        res.Result.Rows,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func queryHandler(ask *service.AskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		result, err := ask.Query(ctx, sql)
		if err != nil {
			if service.IsGuardRejection(err) {
				return mcp.NewToolResultError(fmt.Sprintf("statement rejected: %v", err)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func schemaSummaryHandler(explorer port.SchemaExplorer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if explorer == nil {
			return mcp.NewToolResultError("schema introspection is not configured"), nil
		}

		summary, err := explorer.SchemaSummary(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to summarize schema: %v", err)), nil
		}

		return mcp.NewToolResultText(summary), nil
	}
}
