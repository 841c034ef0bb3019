package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chat-orchestrator/internal/domain"
)

// Fixed user-safe answers. Raw error text never crosses this boundary.
const (
	NoInformationAnswer = "I could not find relevant information to answer your question."
	SafeFailureAnswer   = "Something went wrong while generating the answer. Please try again."
	UnavailableAnswer   = "The system is temporarily unavailable. Please try again later."
)

const snippetMaxLen = 200

// Citation re-expresses a ranked candidate as a caller-facing record for UI
// display and diagnostics.
type Citation struct {
	ID          string
	TextSnippet string
	Source      map[string]string
	IndexScore  float64
	CosineScore float64
	RerankScore float64
	HasRerank   bool
}

// ComposedAnswer is the composer output. Citations are derived from the
// ranking stage alone, so they are present even when generation failed.
type ComposedAnswer struct {
	Answer    string
	Citations []Citation
	Generated bool
}

// AnswerComposer builds the grounding context from a ranked result and
// obtains a generated answer.
type AnswerComposer interface {
	Compose(ctx context.Context, query string, outcome *domain.RetrievalOutcome) *ComposedAnswer
}

type answerComposer struct {
	promptBuilder PromptBuilder
	llm           domain.LLMClient
	maxTokens     int
	timeout       time.Duration
	logger        *slog.Logger
}

// NewAnswerComposer wires the prompt builder and generation client.
func NewAnswerComposer(promptBuilder PromptBuilder, llm domain.LLMClient, maxTokens int, timeout time.Duration, logger *slog.Logger) AnswerComposer {
	return &answerComposer{
		promptBuilder: promptBuilder,
		llm:           llm,
		maxTokens:     maxTokens,
		timeout:       timeout,
		logger:        logger,
	}
}

// Compose returns the answer and citations for a retrieval outcome. It never
// returns an error: every failure mode maps to a fixed user-safe answer and
// an operational log entry.
func (c *answerComposer) Compose(ctx context.Context, query string, outcome *domain.RetrievalOutcome) *ComposedAnswer {
	if outcome == nil || outcome.Status == domain.OutcomeEmpty || len(outcome.Candidates) == 0 {
		// No grounding context: fixed answer, no generation call.
		return &ComposedAnswer{Answer: NoInformationAnswer}
	}

	citations := buildCitations(outcome.Candidates)

	messages, err := c.promptBuilder.Build(query, outcome.Candidates)
	if err != nil {
		c.logger.Error("compose_prompt_failed", slog.String("error", err.Error()))
		return &ComposedAnswer{Answer: SafeFailureAnswer, Citations: citations}
	}

	start := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.llm.Generate(genCtx, messages, c.maxTokens)
	if err != nil {
		genErr := &domain.GenerationError{Err: err}
		c.logger.Error("compose_generation_failed",
			slog.String("error", genErr.Error()),
			slog.Int("context_passages", len(outcome.Candidates)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return &ComposedAnswer{Answer: SafeFailureAnswer, Citations: citations}
	}

	answer := ""
	if resp != nil {
		answer = strings.TrimSpace(resp.Text)
	}
	if answer == "" {
		c.logger.Warn("compose_empty_generation",
			slog.Int("context_passages", len(outcome.Candidates)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return &ComposedAnswer{Answer: SafeFailureAnswer, Citations: citations}
	}

	c.logger.Info("compose_completed",
		slog.Int("context_passages", len(outcome.Candidates)),
		slog.Int("citation_count", len(citations)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &ComposedAnswer{Answer: answer, Citations: citations, Generated: true}
}

func buildCitations(candidates domain.RankedResult) []Citation {
	citations := make([]Citation, 0, len(candidates))
	for _, cand := range candidates {
		source := make(map[string]string, len(cand.Passage.Metadata))
		for k, v := range cand.Passage.Metadata {
			source[k] = v
		}
		citations = append(citations, Citation{
			ID:          cand.Passage.ID,
			TextSnippet: snippet(cand.Passage.Text),
			Source:      source,
			IndexScore:  cand.IndexScore,
			CosineScore: cand.CosineScore,
			RerankScore: cand.RerankScore,
			HasRerank:   cand.HasRerank,
		})
	}
	return citations
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetMaxLen {
		return text
	}
	return string(runes[:snippetMaxLen]) + "..."
}
