package reranker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCrossEncoderClient_Score_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test query", req.Query)
		assert.Len(t, req.Candidates, 3)
		assert.Equal(t, "ms-marco-MiniLM-L-6-v2", req.Model)

		// Results arrive sorted by score, not by candidate order.
		resp := scoreResponse{
			Results: []scoreResponseResult{
				{Index: 1, Score: 0.95},
				{Index: 0, Score: 0.85},
				{Index: 2, Score: 0.75},
			},
			Model: "ms-marco-MiniLM-L-6-v2",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, "ms-marco-MiniLM-L-6-v2", 30*time.Second, testLogger(), nil)

	scores, err := client.Score(context.Background(), "test query", []string{"a", "b", "c"})
	require.NoError(t, err)

	// Scores come back in candidate order regardless of response order.
	assert.Equal(t, []float64{0.85, 0.95, 0.75}, scores)
}

func TestCrossEncoderClient_Score_EmptyCandidates(t *testing.T) {
	client := NewCrossEncoderClient("http://localhost:8001", "ms-marco-MiniLM-L-6-v2", 30*time.Second, testLogger(), nil)

	scores, err := client.Score(context.Background(), "test query", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestCrossEncoderClient_Score_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, "ms-marco-MiniLM-L-6-v2", 30*time.Second, testLogger(), nil)

	_, err := client.Score(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "model not loaded")
}

func TestCrossEncoderClient_Score_MissingCandidateScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{
			Results: []scoreResponseResult{{Index: 0, Score: 0.5}},
		})
	}))
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, "ms-marco-MiniLM-L-6-v2", 30*time.Second, testLogger(), nil)

	_, err := client.Score(context.Background(), "q", []string{"a", "b"})
	assert.ErrorContains(t, err, "missing score for candidate 1")
}

func TestCrossEncoderClient_Score_InvalidIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{
			Results: []scoreResponseResult{{Index: 7, Score: 0.5}},
		})
	}))
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, "ms-marco-MiniLM-L-6-v2", 30*time.Second, testLogger(), nil)

	_, err := client.Score(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "invalid result index")
}
