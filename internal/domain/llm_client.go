package domain

import "context"

// Message is a single chat turn sent to the generation service.
type Message struct {
	Role    string
	Content string
}

// LLMClient defines the capability to send prompts to a text-generation
// service and receive a completion. A single attempt is made per call; retry
// policy belongs to callers above the core.
type LLMClient interface {
	Generate(ctx context.Context, messages []Message, maxTokens int) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the model output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}
