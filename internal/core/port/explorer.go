package port

import "context"

// ColumnInfo describes one column of an introspected table. Description is
// operator-provided business context, empty unless a data dictionary is
// configured.
type ColumnInfo struct {
	Name        string
	DataType    string
	Description string
}

// TableInfo describes one base table visible to the prompt builder.
type TableInfo struct {
	Schema      string
	Name        string
	Description string
	Columns     []ColumnInfo
}

// SchemaExplorer introspects the live database so prompts can describe what
// actually exists instead of relying on a hand-maintained schema blurb.
type SchemaExplorer interface {
	ListTables(ctx context.Context) ([]TableInfo, error)
	SchemaSummary(ctx context.Context) (string, error)
}
