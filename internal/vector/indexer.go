package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanehara/tsugite/internal/core/port"
)

// IndexOptions bound the crawl.
type IndexOptions struct {
	Reset              bool
	Months             int // snapshot window, default 6
	MaxTables          int // default 80
	SnapshotMaxRows    int // per-table snapshot rows, default 24
	SampleRowsPerTable int // default 3
}

func (o *IndexOptions) applyDefaults() {
	if o.Months <= 0 {
		o.Months = 6
	}
	if o.MaxTables <= 0 {
		o.MaxTables = 80
	}
	if o.SnapshotMaxRows <= 0 {
		o.SnapshotMaxRows = 24
	}
	if o.SampleRowsPerTable < 0 {
		o.SampleRowsPerTable = 0
	}
}

// Indexer crawls the live database into retrievable docs: one doc per table,
// monthly aggregate snapshots for tables that look like fact tables, and a
// few sample rows per table.
type Indexer struct {
	pool     *pgxpool.Pool
	explorer port.SchemaExplorer
	embedder port.Embedder
	store    *Store
	logger   *slog.Logger
}

func NewIndexer(pool *pgxpool.Pool, explorer port.SchemaExplorer, embedder port.Embedder, store *Store, logger *slog.Logger) *Indexer {
	return &Indexer{
		pool:     pool,
		explorer: explorer,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Build collects docs, embeds them, and stores them. Returns the number of
// docs indexed.
func (ix *Indexer) Build(ctx context.Context, opts IndexOptions) (int, error) {
	opts.applyDefaults()

	docs, err := ix.collectDocs(ctx, opts)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d docs: %w", len(docs), err)
	}
	if len(embeddings) != len(docs) {
		return 0, fmt.Errorf("embedding count mismatch: %d docs, %d vectors", len(docs), len(embeddings))
	}

	if err := ix.store.EnsureSchema(ctx, len(embeddings[0])); err != nil {
		return 0, err
	}
	if opts.Reset {
		if err := ix.store.Reset(ctx); err != nil {
			return 0, err
		}
	}
	if err := ix.store.Insert(ctx, docs, embeddings); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (ix *Indexer) collectDocs(ctx context.Context, opts IndexOptions) ([]Doc, error) {
	tables, err := ix.explorer.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	if len(tables) > opts.MaxTables {
		tables = tables[:opts.MaxTables]
	}

	var docs []Doc
	for _, t := range tables {
		docs = append(docs, tableDoc(t.Schema, t.Name, t.Columns))

		snaps, err := ix.collectSnapshots(ctx, t, opts)
		if err != nil {
			// A table that can't be aggregated (permissions, exotic types)
			// just contributes no snapshots.
			ix.logger.WarnContext(ctx, "skipping snapshots",
				slog.String("table", t.Schema+"."+t.Name),
				slog.String("error", err.Error()),
			)
		} else {
			docs = append(docs, snaps...)
		}

		samples, err := ix.collectSampleRows(ctx, t, opts.SampleRowsPerTable)
		if err != nil {
			ix.logger.WarnContext(ctx, "skipping sample rows",
				slog.String("table", t.Schema+"."+t.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		docs = append(docs, samples...)
	}
	return docs, nil
}

func (ix *Indexer) collectSnapshots(ctx context.Context, t port.TableInfo, opts IndexOptions) ([]Doc, error) {
	dateCol, ok := pickColumn(t.Columns, dateColumnCandidates)
	if !ok {
		return nil, nil
	}
	measureCol, ok := pickMeasure(t.Columns)
	if !ok {
		return nil, nil
	}
	statusCol, hasStatus := pickColumn(t.Columns, statusColumnCandidates)

	rel := pgx.Identifier{t.Schema, t.Name}.Sanitize()
	dt := pgx.Identifier{dateCol.Name}.Sanitize()
	measure := pgx.Identifier{measureCol.Name}.Sanitize()

	var query string
	if hasStatus {
		status := pgx.Identifier{statusCol.Name}.Sanitize()
		query = fmt.Sprintf(`
			SELECT date_trunc('month', %s)::date::text AS month,
			       %s::text AS status,
			       SUM(%s)::text AS total,
			       COUNT(*)::text AS cnt
			FROM %s
			WHERE %s >= (CURRENT_DATE - ($1 || ' months')::interval)
			GROUP BY 1, 2
			ORDER BY 1 DESC
			LIMIT $2`, dt, status, measure, rel, dt)
	} else {
		query = fmt.Sprintf(`
			SELECT date_trunc('month', %s)::date::text AS month,
			       SUM(%s)::text AS total,
			       COUNT(*)::text AS cnt
			FROM %s
			WHERE %s >= (CURRENT_DATE - ($1 || ' months')::interval)
			GROUP BY 1
			ORDER BY 1 DESC
			LIMIT $2`, dt, measure, rel, dt)
	}

	rows, err := ix.pool.Query(ctx, query, opts.Months, opts.SnapshotMaxRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var month, status, total, cnt string
		if hasStatus {
			if err := rows.Scan(&month, &status, &total, &cnt); err != nil {
				return nil, err
			}
		} else {
			if err := rows.Scan(&month, &total, &cnt); err != nil {
				return nil, err
			}
		}
		docs = append(docs, snapshotDoc(t.Schema, t.Name, month, status, total, cnt))
	}
	return docs, rows.Err()
}

func (ix *Indexer) collectSampleRows(ctx context.Context, t port.TableInfo, limit int) ([]Doc, error) {
	if limit <= 0 {
		return nil, nil
	}

	rel := pgx.Identifier{t.Schema, t.Name}.Sanitize()
	rows, err := ix.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT $1", rel), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var docs []Doc
	i := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		record := make(map[string]any, len(fields))
		meta := map[string]string{
			"schema": t.Schema,
			"table":  t.Name,
			"type":   "row",
		}
		for j, f := range fields {
			record[f.Name] = values[j]
			meta[f.Name] = fmt.Sprint(values[j])
		}

		text, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encoding sample row: %w", err)
		}
		docs = append(docs, Doc{
			Source:   fmt.Sprintf("row:%s.%s#%d", t.Schema, t.Name, i),
			Text:     fmt.Sprintf("ROW %s.%s: %s", t.Schema, t.Name, text),
			Metadata: meta,
		})
		i++
	}
	return docs, rows.Err()
}
