package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chat-orchestrator/internal/domain"
	"chat-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func rankedOutcome() *domain.RetrievalOutcome {
	return &domain.RetrievalOutcome{
		Status: domain.OutcomeOK,
		Candidates: domain.RankedResult{
			domain.RetrievalCandidate{
				Passage: domain.Passage{
					ID:   "p1",
					Text: "Paracetamol relieves mild to moderate pain.",
					Metadata: map[string]string{
						domain.MetaSource: "leaflet.pdf",
						domain.MetaPage:   "3",
						domain.MetaTopic:  "dosage",
					},
				},
				IndexScore: 0.9,
			}.WithCosineScore(0.8).WithRerankScore(0.95),
		},
	}
}

func newComposer(llm domain.LLMClient) usecase.AnswerComposer {
	return usecase.NewAnswerComposer(usecase.NewPassagePromptBuilder(), llm, 768, time.Second, discardLogger())
}

func TestCompose_EmptyOutcome_FixedAnswerWithoutGeneration(t *testing.T) {
	mockLLM := new(MockLLMClient)
	composer := newComposer(mockLLM)

	for _, outcome := range []*domain.RetrievalOutcome{nil, domain.EmptyOutcome()} {
		result := composer.Compose(context.Background(), "q", outcome)

		assert.Equal(t, usecase.NoInformationAnswer, result.Answer)
		assert.Empty(t, result.Citations)
		assert.False(t, result.Generated)
	}
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompose_Success(t *testing.T) {
	mockLLM := new(MockLLMClient)
	composer := newComposer(mockLLM)

	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(messages []domain.Message) bool {
		user := messages[len(messages)-1].Content
		return strings.Contains(user, `<passage id="p1" source="leaflet.pdf" page="3" topic="dosage">`)
	}), 768).Return(&domain.LLMResponse{Text: " Paracetamol relieves pain. ", Done: true}, nil)

	result := composer.Compose(context.Background(), "what is paracetamol for?", rankedOutcome())

	assert.Equal(t, "Paracetamol relieves pain.", result.Answer)
	assert.True(t, result.Generated)
	require.Len(t, result.Citations, 1)
	cite := result.Citations[0]
	assert.Equal(t, "p1", cite.ID)
	assert.Equal(t, "leaflet.pdf", cite.Source[domain.MetaSource])
	assert.True(t, cite.HasRerank)
	assert.InDelta(t, 0.95, cite.RerankScore, 1e-9)
}

func TestCompose_GenerationFailure_SafeAnswerKeepsCitations(t *testing.T) {
	mockLLM := new(MockLLMClient)
	composer := newComposer(mockLLM)

	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("generator down"))

	result := composer.Compose(context.Background(), "q", rankedOutcome())

	assert.Equal(t, usecase.SafeFailureAnswer, result.Answer)
	assert.False(t, result.Generated)
	// Citations come from the ranking stage alone and survive the failure.
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "p1", result.Citations[0].ID)
}

func TestCompose_EmptyGeneration_SafeAnswer(t *testing.T) {
	mockLLM := new(MockLLMClient)
	composer := newComposer(mockLLM)

	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "  \n"}, nil)

	result := composer.Compose(context.Background(), "q", rankedOutcome())

	assert.Equal(t, usecase.SafeFailureAnswer, result.Answer)
	require.Len(t, result.Citations, 1)
}

func TestCompose_SnippetTruncation(t *testing.T) {
	mockLLM := new(MockLLMClient)
	composer := newComposer(mockLLM)

	long := strings.Repeat("a", 450)
	outcome := &domain.RetrievalOutcome{
		Status: domain.OutcomeOK,
		Candidates: domain.RankedResult{
			{Passage: domain.Passage{ID: "p1", Text: long}, IndexScore: 0.5},
		},
	}

	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "ok"}, nil)

	result := composer.Compose(context.Background(), "q", outcome)

	require.Len(t, result.Citations, 1)
	snippet := result.Citations[0].TextSnippet
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Len(t, snippet, 203)
}
