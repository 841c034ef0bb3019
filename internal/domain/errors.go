package domain

import "fmt"

// EmbeddingError marks the embedding service as unavailable or the input as
// unembeddable. It is fatal for the request: no retrieval is possible.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError marks a failed or timed-out language-model call. The
// composer converts it into a fixed safe-failure answer; the wrapped cause
// goes to the log sink only.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
