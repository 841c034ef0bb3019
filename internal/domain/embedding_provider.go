package domain

import "context"

// EmbeddingProvider converts text to fixed-length vectors for both indexed
// passages and queries. Implementations select their backend once at
// construction; the provider is never re-dispatched per call.
type EmbeddingProvider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of produced vectors. It must match the
	// vector index's configured dimension; a mismatch is a configuration
	// error detected at startup.
	Dimension() int

	Version() string
}
