package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"chat-orchestrator/internal/conversation"
	"chat-orchestrator/internal/domain"
	"chat-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRewrite_CatalogPhrase_ShortCircuits(t *testing.T) {
	mockLLM := new(MockLLMClient)
	rewriter := usecase.NewQueryRewriter(mockLLM, time.Second, discardLogger())

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "tell me about paracetamol"},
		{Role: conversation.RoleAssistant, Text: "Paracetamol is a pain reliever."},
	}

	cases := []string{
		"give me the list",
		"Available Products",
		"  product list  ",
		"What products do you have?",
	}
	for _, utterance := range cases {
		got := rewriter.Rewrite(context.Background(), utterance, history)
		assert.Equal(t, usecase.CatalogSentinelQuery, got, "utterance %q", utterance)
	}

	// The sentinel path must never reach the model.
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRewrite_EmptyHistory_SkipsModel(t *testing.T) {
	mockLLM := new(MockLLMClient)
	rewriter := usecase.NewQueryRewriter(mockLLM, time.Second, discardLogger())

	got := rewriter.Rewrite(context.Background(), "  what is ibuprofen?  ", nil)

	assert.Equal(t, "what is ibuprofen?", got)
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRewrite_UsesModelWithBoundedHistory(t *testing.T) {
	mockLLM := new(MockLLMClient)
	rewriter := usecase.NewQueryRewriter(mockLLM, time.Second, discardLogger(),
		usecase.WithHistoryWindow(2))

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "old question that must not appear"},
		{Role: conversation.RoleAssistant, Text: "old answer"},
		{Role: conversation.RoleUser, Text: "what helps with headaches?"},
		{Role: conversation.RoleAssistant, Text: "Ibuprofen can help with headaches."},
	}

	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(messages []domain.Message) bool {
		user := messages[len(messages)-1].Content
		return strings.Contains(user, "Ibuprofen can help") &&
			!strings.Contains(user, "old question that must not appear")
	}), 100).Return(&domain.LLMResponse{Text: " what is the ibuprofen dosage? \n"}, nil)

	got := rewriter.Rewrite(context.Background(), "and the dosage?", history)

	assert.Equal(t, "what is the ibuprofen dosage?", got)
	mockLLM.AssertExpectations(t)
}

func TestRewrite_ModelFailure_FallsBackToRawUtterance(t *testing.T) {
	mockLLM := new(MockLLMClient)
	rewriter := usecase.NewQueryRewriter(mockLLM, time.Second, discardLogger())

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "tell me about aspirin"},
	}

	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("model unavailable"))

	got := rewriter.Rewrite(context.Background(), " and the side effects? ", history)

	assert.Equal(t, "and the side effects?", got)
}

func TestRewrite_EmptyRewrite_FallsBackToRawUtterance(t *testing.T) {
	mockLLM := new(MockLLMClient)
	rewriter := usecase.NewQueryRewriter(mockLLM, time.Second, discardLogger())

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "tell me about aspirin"},
	}

	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "   \n"}, nil)

	got := rewriter.Rewrite(context.Background(), "and the side effects?", history)

	assert.Equal(t, "and the side effects?", got)
}

func TestRewrite_CustomCatalogPhrases(t *testing.T) {
	mockLLM := new(MockLLMClient)
	rewriter := usecase.NewQueryRewriter(mockLLM, time.Second, discardLogger(),
		usecase.WithCatalogPhrases([]string{"show catalog"}))

	assert.Equal(t, usecase.CatalogSentinelQuery,
		rewriter.Rewrite(context.Background(), "Show Catalog!", nil))

	// Default phrases are replaced, not extended, so this one now goes
	// through the raw-utterance path.
	assert.Equal(t, "give me the list",
		rewriter.Rewrite(context.Background(), "give me the list", nil))
}
