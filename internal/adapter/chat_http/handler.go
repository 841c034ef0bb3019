package chat_http

import (
	"net/http"

	"chat-orchestrator/internal/infra/logger"
	"chat-orchestrator/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AskRequest is the caller-facing chat request.
type AskRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// CitationPayload is one grounding passage re-expressed for UI display.
type CitationPayload struct {
	ID             string            `json:"id"`
	TextSnippet    string            `json:"text_snippet"`
	Score          float64           `json:"score"`
	SourceMetadata map[string]string `json:"source_metadata"`
}

// AskResponse is the caller-facing chat response. Degraded and NoContext
// accompany a normal answer; they are never errors.
type AskResponse struct {
	Answer         string            `json:"answer"`
	Citations      []CitationPayload `json:"citations"`
	ConversationID string            `json:"conversation_id"`
	Degraded       bool              `json:"degraded,omitempty"`
	NoContext      bool              `json:"no_context,omitempty"`
}

// ResetRequest identifies the conversation to drop.
type ResetRequest struct {
	ConversationID string `json:"conversation_id"`
}

type Handler struct {
	chat usecase.ChatUsecase
	cl   *logger.ContextLogger
}

func NewHandler(chat usecase.ChatUsecase, cl *logger.ContextLogger) *Handler {
	return &Handler{chat: chat, cl: cl}
}

// Ask answers one conversational turn.
// (POST /v1/chat/ask)
func (h *Handler) Ask(ctx echo.Context) error {
	var req AskRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Message == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	reqCtx := ctx.Request().Context()
	if req.ConversationID != "" {
		reqCtx = logger.WithConversationID(reqCtx, req.ConversationID)
	}
	log := h.cl.WithContext(reqCtx)
	log.Info("chat_ask_received", "message_len", len(req.Message))

	output, err := h.chat.Ask(reqCtx, usecase.ChatInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		log.Error("chat_ask_failed", "error", err)
		// Internal detail stays in the logs; callers get a fixed message.
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "request failed"})
	}

	citations := make([]CitationPayload, 0, len(output.Citations))
	for _, cite := range output.Citations {
		score := cite.CosineScore
		if cite.HasRerank {
			score = cite.RerankScore
		}
		citations = append(citations, CitationPayload{
			ID:             cite.ID,
			TextSnippet:    cite.TextSnippet,
			Score:          score,
			SourceMetadata: cite.Source,
		})
	}

	return ctx.JSON(http.StatusOK, AskResponse{
		Answer:         output.Answer,
		Citations:      citations,
		ConversationID: output.ConversationID,
		Degraded:       output.Degraded,
		NoContext:      output.NoContext,
	})
}

// Reset drops a conversation. Idempotent: resetting an unknown id succeeds.
// (POST /v1/chat/reset)
func (h *Handler) Reset(ctx echo.Context) error {
	var req ResetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	reqCtx := ctx.Request().Context()
	if req.ConversationID != "" {
		reqCtx = logger.WithConversationID(reqCtx, req.ConversationID)
	}
	h.cl.WithContext(reqCtx).Info("chat_reset_received")

	h.chat.Reset(req.ConversationID)
	return ctx.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

// Register wires the chat routes onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/chat/ask", h.Ask)
	e.POST("/v1/chat/reset", h.Reset)
}
