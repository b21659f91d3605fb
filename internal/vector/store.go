package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists docs and their embeddings in a pgvector table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the vector extension and the docs table for the given
// embedding dimension.
func (s *Store) EnsureSchema(ctx context.Context, dim int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS vector_docs (
			id bigserial PRIMARY KEY,
			source text NOT NULL,
			text text NOT NULL,
			metadata jsonb,
			embedding vector(%d) NOT NULL
		)`, dim)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating vector_docs table: %w", err)
	}
	return nil
}

// Reset empties the index.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE vector_docs"); err != nil {
		return fmt.Errorf("resetting vector index: %w", err)
	}
	return nil
}

// Insert stores docs with their embeddings, batched in one round trip.
func (s *Store) Insert(ctx context.Context, docs []Doc, embeddings [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("docs and embeddings length mismatch: %d vs %d", len(docs), len(embeddings))
	}

	batch := &pgx.Batch{}
	for i, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %s: %w", doc.Source, err)
		}
		batch.Queue(
			`INSERT INTO vector_docs (source, text, metadata, embedding) VALUES ($1, $2, $3, $4::vector)`,
			doc.Source, doc.Text, meta, vectorLiteral(embeddings[i]),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting docs: %w", err)
		}
	}
	return nil
}

// Search returns the topK docs nearest to the query embedding by cosine
// distance. minScore 0 disables the similarity floor.
func (s *Store) Search(ctx context.Context, queryEmb []float32, topK int, minScore float64) ([]Match, error) {
	lit := vectorLiteral(queryEmb)

	query := `
		SELECT source, text, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM vector_docs
		WHERE (1 - (embedding <=> $1::vector)) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, lit, minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var meta []byte
		if err := rows.Scan(&m.Source, &m.Text, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s: %w", m.Source, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
