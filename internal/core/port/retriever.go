package port

import "context"

// ContextRetriever supplies retrieval-augmented context snippets for a
// question, most relevant first.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, question string) ([]string, error)
}
