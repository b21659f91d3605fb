package postgres

import (
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hanehara/tsugite/internal/core/port"
)

// rowsToResult drains pgx.Rows into an ordered QueryResult. A positive
// maxRows stops collection early; zero collects everything.
func rowsToResult(rows pgx.Rows, maxRows int) (*port.QueryResult, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &port.QueryResult{Columns: columns}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = plainValue(v)
		}
		result.Rows = append(result.Rows, row)

		if maxRows > 0 && len(result.Rows) >= maxRows {
			break
		}
	}
	// Close before the caller commits; safe to call twice.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

// plainValue flattens driver-specific wrappers into comparison-friendly Go
// values. NUMERIC in particular arrives as pgtype.Numeric; its exact text
// form lets the comparator route it through decimal normalization.
func plainValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		dv, err := x.Value()
		if err != nil {
			return v
		}
		return driverText(dv)
	default:
		return v
	}
}

func driverText(dv driver.Value) any {
	switch t := dv.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return dv
	}
}
