package domain

import "context"

// CrossEncoderScorer scores (query, passage-text) pairs with a cross-encoder
// model. More expensive and more precise than vector similarity alone.
//
// Score returns one score per candidate text, in the same order. If an error
// occurs, callers fall back to their previous ordering.
type CrossEncoderScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	ModelName() string
}
