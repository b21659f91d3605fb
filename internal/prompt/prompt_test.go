package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuild_Defaults(t *testing.T) {
	b := Build("How many orders last month?", Options{})

	assert.Contains(t, b.System, "Text-to-SQL assistant for postgres")
	assert.Contains(t, b.System, "LIMIT 100")
	assert.Contains(t, b.User, "TABLE orders (")
	assert.Contains(t, b.User, "How many orders last month?")
}

func TestBuild_IntrospectedSchemaReplacesDefault(t *testing.T) {
	b := Build("q", Options{Schema: "TABLE widgets (id integer);"})

	assert.Contains(t, b.User, "TABLE widgets")
	assert.NotContains(t, b.User, "order_items")
}

func TestBuild_TodayAnchor(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := Build("q", Options{Now: now})

	assert.Contains(t, b.System, "TODAY = 2026-03-14")
}

func TestBuild_MaxLimitPropagates(t *testing.T) {
	b := Build("q", Options{MaxLimit: 25})
	assert.Contains(t, b.System, "LIMIT 25")
}

func TestBuild_ContextSnippets(t *testing.T) {
	b := Build("q", Options{Context: []string{"snapshot: month=2026-02 total=1200", "table doc"}})

	assert.Contains(t, b.User, "[Context]\n- snapshot: month=2026-02 total=1200\n- table doc")
}

func TestBuild_NoContextSection(t *testing.T) {
	b := Build("q", Options{})
	assert.NotContains(t, b.User, "[Context]")
}
