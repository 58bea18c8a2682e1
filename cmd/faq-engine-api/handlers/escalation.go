package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Escalations reads and moves escalations.
type Escalations interface {
	Get(ctx context.Context, id string) (*escalation.Escalation, error)
	List(ctx context.Context, status *escalation.Status) ([]*escalation.Escalation, error)
	Transition(ctx context.Context, id string, to escalation.Status) (*escalation.Escalation, error)
}

// EscalationHandler handles the support agents' escalation queue.
type EscalationHandler struct {
	logger      *observability.Logger
	escalations Escalations
}

// NewEscalationHandler creates a new escalation handler.
func NewEscalationHandler(logger *observability.Logger, escalations Escalations) *EscalationHandler {
	return &EscalationHandler{
		logger:      logger,
		escalations: escalations,
	}
}

// EscalationDTO represents one escalation.
type EscalationDTO struct {
	ID         string `json:"id"`
	QueryText  string `json:"queryText"`
	UserID     string `json:"userId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

// UpdateEscalationDTO requests a status change.
type UpdateEscalationDTO struct {
	Status string `json:"status"`
}

// ListEscalationsDTO wraps an escalation listing.
type ListEscalationsDTO struct {
	Escalations []EscalationDTO `json:"escalations"`
}

// List handles GET /escalations?status=.
func (h *EscalationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	var filter *escalation.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := escalation.ParseStatus(raw)
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, "invalid status", err.Error())
			return
		}
		filter = &status
	}

	items, err := h.escalations.List(ctx, filter)
	if err != nil {
		writeDomainError(logger, w, err)
		return
	}

	resp := ListEscalationsDTO{Escalations: make([]EscalationDTO, 0, len(items))}
	for _, e := range items {
		resp.Escalations = append(resp.Escalations, toEscalationDTO(e))
	}
	writeJSON(logger, w, http.StatusOK, resp)
}

// Get handles GET /escalations/{escalationId}.
func (h *EscalationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	e, err := h.escalations.Get(ctx, chi.URLParam(r, "escalationId"))
	if err != nil {
		writeDomainError(logger, w, err)
		return
	}
	writeJSON(logger, w, http.StatusOK, toEscalationDTO(e))
}

// Update handles PATCH /escalations/{escalationId}.
func (h *EscalationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	var reqDTO UpdateEscalationDTO
	if err := decodeJSON(r, &reqDTO); err != nil {
		writeError(logger, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	status, err := escalation.ParseStatus(reqDTO.Status)
	if err != nil {
		writeError(logger, w, http.StatusBadRequest, "invalid status", err.Error())
		return
	}

	e, err := h.escalations.Transition(ctx, chi.URLParam(r, "escalationId"), status)
	if err != nil {
		writeDomainError(logger, w, err)
		return
	}
	writeJSON(logger, w, http.StatusOK, toEscalationDTO(e))
}

func toEscalationDTO(e *escalation.Escalation) EscalationDTO {
	dto := EscalationDTO{
		ID:        e.ID,
		QueryText: e.QueryText,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Priority:  string(e.Priority),
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
	if e.ResolvedAt != nil {
		dto.ResolvedAt = e.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}
