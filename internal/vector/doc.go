package vector

import (
	"fmt"
	"strings"

	"github.com/hanehara/tsugite/internal/core/port"
)

// Doc is one retrievable unit: a text body for embedding plus metadata for
// filtered search.
type Doc struct {
	Source   string
	Text     string
	Metadata map[string]string
}

// Match is one search hit with its cosine similarity score.
type Match struct {
	Source   string
	Text     string
	Metadata map[string]string
	Score    float64
}

// tableDoc renders one "TABLE schema.name: columns ..." document.
func tableDoc(schema, table string, cols []port.ColumnInfo) Doc {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, c.Name+" "+c.DataType)
	}
	return Doc{
		Source: fmt.Sprintf("schema:%s.%s", schema, table),
		Text:   fmt.Sprintf("TABLE %s.%s: columns %s", schema, table, strings.Join(parts, ", ")),
		Metadata: map[string]string{
			"schema": schema,
			"table":  table,
			"type":   "table",
		},
	}
}

// dateColumnCandidates are tried in order, exact match first, then suffix.
var dateColumnCandidates = []string{"order_date", "created_at", "date"}

var statusColumnCandidates = []string{"status", "state", "is_active"}

// pickColumn finds the first candidate by exact lower-cased name, falling
// back to suffix match.
func pickColumn(cols []port.ColumnInfo, candidates []string) (port.ColumnInfo, bool) {
	byName := make(map[string]port.ColumnInfo, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.Name)] = c
	}
	for _, name := range candidates {
		if c, ok := byName[name]; ok {
			return c, true
		}
	}
	for _, c := range cols {
		lower := strings.ToLower(c.Name)
		for _, name := range candidates {
			if strings.HasSuffix(lower, name) {
				return c, true
			}
		}
	}
	return port.ColumnInfo{}, false
}

var numericTypeKeys = []string{"int", "numeric", "decimal", "real", "double", "float", "money"}

func isNumericType(dataType string) bool {
	t := strings.ToLower(dataType)
	for _, key := range numericTypeKeys {
		if strings.Contains(t, key) {
			return true
		}
	}
	return false
}

var measureNameKeys = []string{"total", "amount", "sales", "revenue", "price", "sum"}

// pickMeasure finds the first numeric column whose name suggests a money or
// quantity measure.
func pickMeasure(cols []port.ColumnInfo) (port.ColumnInfo, bool) {
	for _, c := range cols {
		if !isNumericType(c.DataType) {
			continue
		}
		lower := strings.ToLower(c.Name)
		for _, key := range measureNameKeys {
			if strings.Contains(lower, key) {
				return c, true
			}
		}
	}
	return port.ColumnInfo{}, false
}

// snapshotDoc renders one monthly aggregate row. status is empty when the
// table has no status-like column.
func snapshotDoc(schema, table, month, status, total, count string) Doc {
	meta := map[string]string{
		"schema": schema,
		"table":  table,
		"type":   "snapshot",
		"month":  month,
	}
	text := fmt.Sprintf("SNAPSHOT %s.%s: month=%s total=%s count=%s", schema, table, month, total, count)
	if status != "" {
		meta["status"] = status
		text = fmt.Sprintf("SNAPSHOT %s.%s: month=%s status=%s total=%s count=%s", schema, table, month, status, total, count)
	}
	return Doc{
		Source:   fmt.Sprintf("snapshot:%s.%s", schema, table),
		Text:     text,
		Metadata: meta,
	}
}

// vectorLiteral renders an embedding in pgvector's input syntax.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.6f", v)
	}
	b.WriteByte(']')
	return b.String()
}
