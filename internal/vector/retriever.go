package vector

import (
	"context"
	"fmt"

	"github.com/hanehara/tsugite/internal/core/port"
)

// DefaultTopK is used when the caller passes a non-positive k.
const DefaultTopK = 4

// Retriever answers "which indexed docs are closest to this question".
type Retriever struct {
	embedder port.Embedder
	store    *Store
}

func NewRetriever(embedder port.Embedder, store *Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the question and returns the topK nearest docs.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, minScore float64) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return r.store.Search(ctx, embeddings[0], topK, minScore)
}

// RetrieveContext adapts Retrieve to the prompt builder: default top-k, no
// score floor, one "source: text" snippet per match.
func (r *Retriever) RetrieveContext(ctx context.Context, question string) ([]string, error) {
	matches, err := r.Retrieve(ctx, question, DefaultTopK, 0)
	if err != nil {
		return nil, err
	}
	snippets := make([]string, len(matches))
	for i, m := range matches {
		snippets[i] = fmt.Sprintf("%s: %s", m.Source, m.Text)
	}
	return snippets, nil
}
