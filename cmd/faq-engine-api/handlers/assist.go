package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/cmd/faq-engine-api/middleware"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/assist"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Asker answers or escalates chat queries.
type Asker interface {
	Ask(ctx context.Context, req assist.AskRequest) (*assist.Answer, error)
}

// AssistHandler handles chat queries.
type AssistHandler struct {
	logger    *observability.Logger
	assistant Asker
}

// NewAssistHandler creates a new assist handler.
func NewAssistHandler(logger *observability.Logger, assistant Asker) *AssistHandler {
	return &AssistHandler{
		logger:    logger,
		assistant: assistant,
	}
}

// AskRequestDTO represents a chat query.
type AskRequestDTO struct {
	Query     string   `json:"query"`
	Models    []string `json:"models,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
}

// AskResponseDTO is either an FAQ answer or an escalation notice.
type AskResponseDTO struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	FAQ          *FAQResultDTO `json:"faq,omitempty"`
	EscalationID string        `json:"escalationId,omitempty"`
	Priority     string        `json:"priority,omitempty"`
}

// Ask handles POST /assist/ask.
func (h *AssistHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	var reqDTO AskRequestDTO
	if err := decodeJSON(r, &reqDTO); err != nil {
		writeError(logger, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(reqDTO.Query) == "" {
		writeError(logger, w, http.StatusBadRequest, "query is required", "")
		return
	}

	userID := middleware.UserFromContext(ctx)
	if userID == middleware.AnonymousUser {
		userID = ""
	}

	answer, err := h.assistant.Ask(ctx, assist.AskRequest{
		Query:     faq.Query{Text: reqDTO.Query, UserModels: faq.ParseModels(reqDTO.Models)},
		UserID:    userID,
		SessionID: reqDTO.SessionID,
	})
	if err != nil {
		writeDomainError(logger, w, err)
		return
	}

	resp := AskResponseDTO{
		Status:       string(answer.Status),
		Message:      answer.Message,
		EscalationID: answer.EscalationID,
		Priority:     string(answer.Priority),
	}
	if answer.FAQ != nil {
		dto := toFAQResultDTO(*answer.FAQ, answer.Score, answer.FAQ.MatchesModels(faq.ParseModels(reqDTO.Models)))
		resp.FAQ = &dto
	}

	writeJSON(logger, w, http.StatusOK, resp)
}
