package dictionary

import (
	"context"

	"github.com/hanehara/tsugite/internal/adapter/postgres"
	"github.com/hanehara/tsugite/internal/core/port"
)

// Explorer decorates a SchemaExplorer with dictionary context: hidden tables
// are dropped and descriptions are merged into the introspection result.
type Explorer struct {
	inner port.SchemaExplorer
	dict  *Dictionary
}

func NewExplorer(inner port.SchemaExplorer, dict *Dictionary) *Explorer {
	return &Explorer{inner: inner, dict: dict}
}

func (e *Explorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	tables, err := e.inner.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return e.merge(tables), nil
}

func (e *Explorer) SchemaSummary(ctx context.Context) (string, error) {
	tables, err := e.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return postgres.RenderSchemaSummary(tables), nil
}

func (e *Explorer) merge(tables []port.TableInfo) []port.TableInfo {
	out := make([]port.TableInfo, 0, len(tables))
	for _, t := range tables {
		entry, ok := e.dict.Tables[t.Schema+"."+t.Name]
		if !ok {
			out = append(out, t)
			continue
		}
		if entry.Hide {
			continue
		}
		if t.Description == "" {
			t.Description = entry.Description
		}
		for i, c := range t.Columns {
			if ce, ok := entry.Columns[c.Name]; ok && c.Description == "" {
				t.Columns[i].Description = ce.Description
			}
		}
		out = append(out, t)
	}
	return out
}
