package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"chat-orchestrator/internal/conversation"
	"chat-orchestrator/internal/domain"
)

// CatalogSentinelQuery is returned verbatim for catalog-listing utterances,
// bypassing both history and the rewrite model.
const CatalogSentinelQuery = "list of all product"

// defaultCatalogPhrases are the utterances that normalize to the catalog
// intent. Matching is case- and punctuation-insensitive.
var defaultCatalogPhrases = []string{
	"give me the list",
	"available products",
	"product list",
	"all products",
	"list of all product",
	"show me the list",
	"what products do you have",
}

// QueryRewriter turns a raw, possibly context-dependent utterance into one
// standalone query suitable for retrieval.
type QueryRewriter interface {
	Rewrite(ctx context.Context, utterance string, history []conversation.Turn) string
}

type queryRewriter struct {
	llm            domain.LLMClient
	historyWindow  int
	maxTokens      int
	timeout        time.Duration
	catalogPhrases map[string]struct{}
	logger         *slog.Logger
}

// RewriterOption configures a queryRewriter.
type RewriterOption func(*queryRewriter)

// WithCatalogPhrases replaces the default catalog-intent phrase set.
func WithCatalogPhrases(phrases []string) RewriterOption {
	return func(r *queryRewriter) {
		r.catalogPhrases = make(map[string]struct{}, len(phrases))
		for _, p := range phrases {
			r.catalogPhrases[normalizeUtterance(p)] = struct{}{}
		}
	}
}

// WithHistoryWindow bounds how many recent turns feed the rewrite prompt.
func WithHistoryWindow(n int) RewriterOption {
	return func(r *queryRewriter) {
		if n > 0 {
			r.historyWindow = n
		}
	}
}

// NewQueryRewriter builds a rewriter backed by the given generation client.
func NewQueryRewriter(llm domain.LLMClient, timeout time.Duration, logger *slog.Logger, opts ...RewriterOption) QueryRewriter {
	r := &queryRewriter{
		llm:           llm,
		historyWindow: 6,
		maxTokens:     100,
		timeout:       timeout,
		logger:        logger,
	}
	WithCatalogPhrases(defaultCatalogPhrases)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite produces a standalone query. It never fails: a delegate error or
// an empty rewrite falls back to the trimmed raw utterance.
func (r *queryRewriter) Rewrite(ctx context.Context, utterance string, history []conversation.Turn) string {
	trimmed := strings.TrimSpace(utterance)

	// Catalog-listing intent short-circuits before any model call and
	// ignores history entirely.
	if _, ok := r.catalogPhrases[normalizeUtterance(trimmed)]; ok {
		r.logger.Info("rewrite_catalog_shortcircuit",
			slog.String("utterance", truncateString(trimmed, 100)))
		return CatalogSentinelQuery
	}

	if len(history) == 0 {
		return trimmed
	}

	start := time.Now()
	rewriteCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Generate(rewriteCtx, r.buildPrompt(trimmed, history), r.maxTokens)
	if err != nil {
		r.logger.Warn("rewrite_failed_using_raw_utterance",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return trimmed
	}

	rewritten := ""
	if resp != nil {
		rewritten = strings.TrimSpace(resp.Text)
	}
	if rewritten == "" {
		r.logger.Warn("rewrite_empty_using_raw_utterance",
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return trimmed
	}

	r.logger.Info("rewrite_completed",
		slog.String("standalone_query", truncateString(rewritten, 100)),
		slog.Int("history_turns", len(history)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return rewritten
}

func (r *queryRewriter) buildPrompt(utterance string, history []conversation.Turn) []domain.Message {
	if len(history) > r.historyWindow {
		history = history[len(history)-r.historyWindow:]
	}

	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}

	system := strings.Join([]string{
		"You are a query rewriter for a document question-answering system.",
		"Rewrite the latest user message into ONE clear standalone query for retrieval.",
		"Respond in English only, regardless of the input language.",
		"If the latest message introduces a new topic or product, ignore the previous history.",
		"If the message describes symptoms without naming a product, rewrite it as a symptom-only query.",
		"Never infer or guess a product name that the user did not mention.",
		"Output ONLY the rewritten query with no explanations.",
	}, "\n")

	user := fmt.Sprintf("Chat history:\n%s\nUser message:\n%s\n\nStandalone query:", sb.String(), utterance)

	return []domain.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// normalizeUtterance lowercases, strips punctuation and collapses whitespace
// so phrase matching ignores surface variation.
func normalizeUtterance(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
