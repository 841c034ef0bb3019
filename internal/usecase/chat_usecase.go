package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chat-orchestrator/internal/conversation"
	"chat-orchestrator/internal/domain"

	"github.com/google/uuid"
)

// ChatInput is one inbound user turn.
type ChatInput struct {
	Message        string
	ConversationID string
}

// ChatOutput is the full per-turn result returned to the transport layer.
type ChatOutput struct {
	Answer          string
	Citations       []Citation
	ConversationID  string
	StandaloneQuery string
	RetrievalID     string

	// Degraded reports cross-encoder fallback; NoContext reports an empty
	// retrieval outcome. Both accompany a normal answer, never an error.
	Degraded  bool
	NoContext bool
}

// ChatUsecase runs one conversational turn end to end: snapshot history,
// rewrite, retrieve, compose, then append the exchange.
type ChatUsecase interface {
	Ask(ctx context.Context, input ChatInput) (*ChatOutput, error)
	Reset(conversationID string)
}

type chatUsecase struct {
	store     *conversation.Store
	rewriter  QueryRewriter
	retriever HybridRetriever
	composer  AnswerComposer
	logger    *slog.Logger
}

// NewChatUsecase wires the per-turn pipeline around the shared session store.
func NewChatUsecase(
	store *conversation.Store,
	rewriter QueryRewriter,
	retriever HybridRetriever,
	composer AnswerComposer,
	logger *slog.Logger,
) ChatUsecase {
	return &chatUsecase{
		store:     store,
		rewriter:  rewriter,
		retriever: retriever,
		composer:  composer,
		logger:    logger,
	}
}

// Ask handles one user turn. The session lock is held only for the history
// snapshot and the final pair append, never across external calls. The user
// turn is appended together with the produced answer, real or fallback, as
// one atomic exchange; a failed request before that point leaves the
// history unchanged.
func (u *chatUsecase) Ask(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, errors.New("message is required")
	}

	conversationID := input.ConversationID
	if conversationID == "" {
		conversationID = conversation.DefaultSessionID
	}
	retrievalID := uuid.NewString()
	start := time.Now()

	history := u.store.HistorySnapshot(conversationID)
	standaloneQuery := u.rewriter.Rewrite(ctx, message, history)

	output := &ChatOutput{
		ConversationID:  conversationID,
		StandaloneQuery: standaloneQuery,
		RetrievalID:     retrievalID,
	}

	outcome, err := u.retriever.Retrieve(ctx, standaloneQuery, retrievalID)
	if err != nil {
		var embedErr *domain.EmbeddingError
		if errors.As(err, &embedErr) {
			// Fatal for the request: no retrieval is possible. The user
			// still gets a fixed answer and the turn is recorded.
			u.logger.Error("chat_embedding_unavailable",
				slog.String("retrieval_id", retrievalID),
				slog.String("conversation_id", conversationID),
				slog.String("error", embedErr.Error()))
			output.Answer = UnavailableAnswer
			output.NoContext = true
			u.store.AppendExchange(conversationID, message, output.Answer)
			return output, nil
		}
		u.logger.Error("chat_retrieval_failed",
			slog.String("retrieval_id", retrievalID),
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()))
		return nil, err
	}

	composed := u.composer.Compose(ctx, standaloneQuery, outcome)

	output.Answer = composed.Answer
	output.Citations = composed.Citations
	output.Degraded = outcome.Degraded
	output.NoContext = outcome.Status == domain.OutcomeEmpty

	u.store.AppendExchange(conversationID, message, output.Answer)

	u.logger.Info("chat_turn_completed",
		slog.String("retrieval_id", retrievalID),
		slog.String("conversation_id", conversationID),
		slog.Int("citation_count", len(output.Citations)),
		slog.Bool("degraded", output.Degraded),
		slog.Bool("no_context", output.NoContext),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return output, nil
}

// Reset drops the conversation. Safe to call for unknown ids.
func (u *chatUsecase) Reset(conversationID string) {
	if conversationID == "" {
		conversationID = conversation.DefaultSessionID
	}
	u.store.Reset(conversationID)
	u.logger.Info("conversation_reset", slog.String("conversation_id", conversationID))
}
