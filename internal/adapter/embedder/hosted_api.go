package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chat-orchestrator/internal/domain"
)

// HostedApiEmbedder calls an OpenAI-compatible hosted embeddings API
// (/v1/embeddings with bearer auth).
type HostedApiEmbedder struct {
	BaseURL   string
	Model     string
	apiKey    string
	Client    *http.Client
	dimension int
}

// NewHostedApiEmbedder constructs the embedder. An empty apiKey is rejected
// at construction, not on the first request.
func NewHostedApiEmbedder(baseURL, model, apiKey string, dimension int, timeout time.Duration, client *http.Client) (*HostedApiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("hosted embedder requires an API key")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HostedApiEmbedder{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		apiKey:    apiKey,
		Client:    client,
		dimension: dimension,
	}, nil
}

type hostedEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type hostedEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedQuery embeds a single query text.
func (e *HostedApiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts. The response order follows the
// provider's index field.
func (e *HostedApiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(hostedEmbedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embeddings request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned status: %d", resp.StatusCode)
	}

	var respBody hostedEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings response: %w", err)
	}
	if len(respBody.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(respBody.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range respBody.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("invalid embedding index %d for %d inputs", item.Index, len(texts))
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Dimension returns the configured vector length.
func (e *HostedApiEmbedder) Dimension() int { return e.dimension }

// Version returns the wrapped model name.
func (e *HostedApiEmbedder) Version() string { return e.Model }

var _ domain.EmbeddingProvider = (*HostedApiEmbedder)(nil)
