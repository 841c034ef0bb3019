package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-orchestrator/internal/domain"
)

// scoreRequest is the request payload for the rerank endpoint.
type scoreRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// scoreResponseResult is a single result in the rerank response.
type scoreResponseResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// scoreResponse is the response from the rerank endpoint.
type scoreResponse struct {
	Results []scoreResponseResult `json:"results"`
	Model   string                `json:"model"`
}

// CrossEncoderClient implements domain.CrossEncoderScorer via HTTP calls to
// a cross-encoder inference service.
type CrossEncoderClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewCrossEncoderClient constructs the client. model is the cross-encoder
// model name (e.g. ms-marco-MiniLM-L-6-v2). If client is nil a default one
// is created with the given timeout.
func NewCrossEncoderClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client *http.Client) *CrossEncoderClient {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &CrossEncoderClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
		logger:  logger,
	}
}

// Score returns one relevance score per candidate text, in candidate order.
func (c *CrossEncoderClient) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	startTime := time.Now()
	c.logger.Info("cross_encoder_started",
		slog.String("query", truncateString(query, 100)),
		slog.Int("candidate_count", len(texts)),
		slog.String("model", c.Model))

	jsonPayload, err := json.Marshal(scoreRequest{Query: query, Candidates: texts, Model: c.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("cross_encoder_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("cross_encoder_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var scoreResp scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	// Map index-addressed results back to candidate order.
	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range scoreResp.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(texts))
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for candidate %d", i)
		}
	}

	c.logger.Info("cross_encoder_completed",
		slog.Int("result_count", len(scores)),
		slog.String("model", scoreResp.Model),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
	return scores, nil
}

// ModelName returns the model identifier for logging.
func (c *CrossEncoderClient) ModelName() string { return c.Model }

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ domain.CrossEncoderScorer = (*CrossEncoderClient)(nil)
