package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanehara/tsugite/internal/core/port"
)

// Explorer introspects tables and columns for prompt construction.
type Explorer struct {
	pool    *pgxpool.Pool
	schemas []string // empty means all non-system schemas
}

func NewExplorer(pool *pgxpool.Pool, schemas []string) *Explorer {
	return &Explorer{pool: pool, schemas: schemas}
}

func (e *Explorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	filter, args := schemaFilter(e.schemas, "table_schema", 1)
	query := fmt.Sprintf(queryListTables, filter)

	rows, err := e.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []port.TableInfo
	for rows.Next() {
		var t port.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}

	for i := range tables {
		cols, err := e.listColumns(ctx, tables[i].Schema, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = cols
	}
	return tables, nil
}

func (e *Explorer) listColumns(ctx context.Context, schema, table string) ([]port.ColumnInfo, error) {
	rows, err := e.pool.Query(ctx, queryListColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var cols []port.ColumnInfo
	for rows.Next() {
		var c port.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// SchemaSummary renders the introspected tables in the compact
// "TABLE name (col type, ...)" form the prompt builder embeds.
func (e *Explorer) SchemaSummary(ctx context.Context) (string, error) {
	tables, err := e.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return RenderSchemaSummary(tables), nil
}

// RenderSchemaSummary is split out so it can be exercised without a live
// database.
func RenderSchemaSummary(tables []port.TableInfo) string {
	var b strings.Builder
	b.WriteString("-- schema introspected from information_schema\n")
	for _, t := range tables {
		name := t.Name
		if t.Schema != "" && t.Schema != "public" {
			name = t.Schema + "." + t.Name
		}
		if t.Description != "" {
			fmt.Fprintf(&b, "-- %s\n", t.Description)
		}
		fmt.Fprintf(&b, "TABLE %s (\n", name)
		for _, c := range t.Columns {
			if c.Description != "" {
				fmt.Fprintf(&b, "  %s %s, -- %s\n", c.Name, c.DataType, c.Description)
				continue
			}
			fmt.Fprintf(&b, "  %s %s,\n", c.Name, c.DataType)
		}
		b.WriteString(");\n\n")
	}
	return strings.TrimSpace(b.String())
}

// schemaFilter builds an optional "AND col = ANY(...)" clause with
// positional arguments starting at argPos.
func schemaFilter(schemas []string, col string, argPos int) (string, []any) {
	if len(schemas) == 0 {
		return "", nil
	}
	return fmt.Sprintf("AND %s = ANY($%d)", col, argPos), []any{schemas}
}
