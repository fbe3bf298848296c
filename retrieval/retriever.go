// Package retrieval implements the context-retrieval collaborator: a
// Postgres/pgvector document store with embedding-based semantic search, and
// the registry tool that exposes it to the agent with a degrade-gracefully
// policy (empty results instead of errors).
package retrieval

import "context"

// Result is one retrieved context item.
type Result struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score,omitempty"`
}

// Retriever finds context items relevant to a query, ordered by similarity.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}

// Document is a unit of ingestible content.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}
