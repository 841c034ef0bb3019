package domain

import "context"

// IndexMatch is a single nearest-neighbor hit returned by the index.
// Embedding may be empty when the backing store did not return the stored
// vector; such matches are dropped by local rescoring.
type IndexMatch struct {
	Passage Passage
	Score   float64
}

// VectorIndex is the approximate nearest-neighbor service. Returning fewer
// than topK matches, including zero, is valid.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]IndexMatch, error)

	// Dimension reports the index's configured vector dimension for the
	// startup compatibility check.
	Dimension(ctx context.Context) (int, error)
}
