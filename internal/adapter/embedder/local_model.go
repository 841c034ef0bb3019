package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-orchestrator/internal/domain"
)

// LocalModelEmbedder calls a locally hosted embedding server (Ollama-style
// /api/embed endpoint).
type LocalModelEmbedder struct {
	BaseURL   string
	Model     string
	Client    *http.Client
	dimension int
}

// NewLocalModelEmbedder constructs the embedder. dimension is the vector
// length the configured model produces; it is validated against the index at
// startup. If client is nil a default one is created with the given timeout.
func NewLocalModelEmbedder(baseURL, model string, dimension int, timeout time.Duration, client *http.Client) *LocalModelEmbedder {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &LocalModelEmbedder{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		Client:    client,
		dimension: dimension,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedQuery embeds a single query text.
func (e *LocalModelEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts, one vector per text.
func (e *LocalModelEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	jsonData, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		slog.Error("local_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to call embedding server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Error("local_embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("embedding server returned status: %d", resp.StatusCode)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(respBody.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(respBody.Embeddings))
	}

	slog.Info("local_embed_completed",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model),
		slog.Duration("elapsed", time.Since(start)))
	return respBody.Embeddings, nil
}

// Dimension returns the configured vector length.
func (e *LocalModelEmbedder) Dimension() int { return e.dimension }

// Version returns the wrapped model name.
func (e *LocalModelEmbedder) Version() string { return e.Model }

var _ domain.EmbeddingProvider = (*LocalModelEmbedder)(nil)
