// Package handlers provides HTTP handlers for the FAQ engine API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// UnavailableMessage is the client-facing text for corpus outages.
const UnavailableMessage = "service temporarily unavailable"

// ErrorDTO is the body of every error response.
type ErrorDTO struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(logger *observability.Logger, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(logger *observability.Logger, w http.ResponseWriter, status int, message, detail string) {
	writeJSON(logger, w, status, ErrorDTO{
		Error:   message,
		Message: message,
		Detail:  detail,
	})
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(logger *observability.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, faq.ErrCorpusUnavailable):
		writeError(logger, w, http.StatusServiceUnavailable, UnavailableMessage, "")
	case errors.Is(err, faq.ErrNotFound):
		writeError(logger, w, http.StatusNotFound, "not found", "")
	case errors.Is(err, escalation.ErrInvalidTransition):
		writeError(logger, w, http.StatusConflict, "invalid status transition", err.Error())
	case errors.Is(err, faq.ErrInvalidInput),
		errors.Is(err, faq.ErrInvalidCategory),
		errors.Is(err, escalation.ErrInvalidStatus),
		errors.Is(err, escalation.ErrInvalidPriority):
		writeError(logger, w, http.StatusBadRequest, "invalid request", err.Error())
	default:
		logger.Error().Err(err).Msg("Request failed")
		writeError(logger, w, http.StatusInternalServerError, "internal error", "")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
