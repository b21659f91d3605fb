package postgres

// information_schema queries used by the explorer. Schema filtering is
// interpolated as an extra AND clause built by schemaFilter.
const (
	queryListTables = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		  AND table_type = 'BASE TABLE'
		  %s
		ORDER BY table_schema, table_name`

	queryListColumns = `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
)
