// Package assist runs the customer chat pipeline: answer from the FAQ
// knowledge base when a match is confident, otherwise escalate to support.
package assist

import (
	"context"
	"errors"
	"strings"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// EscalationMessage is shown to the customer when a query is escalated.
const EscalationMessage = "I couldn't find an answer, escalating to support"

// Status is the outcome of one Ask.
type Status string

const (
	StatusAnswered  Status = "answered"
	StatusEscalated Status = "escalated"
)

// Matcher finds the best FAQ for a query.
type Matcher interface {
	BestMatch(ctx context.Context, query faq.Query) (faq.ScoredCandidate, bool, error)
}

// ViewRecorder records that an FAQ answer was shown.
type ViewRecorder interface {
	RecordView(ctx context.Context, faqID string) error
}

// Escalator hands an unanswered query over to support.
type Escalator interface {
	Create(ctx context.Context, req escalation.CreateRequest) (string, error)
}

// AskRequest is one customer chat message.
type AskRequest struct {
	Query     faq.Query
	UserID    string
	SessionID string
}

// Answer is the pipeline's reply to the customer.
type Answer struct {
	Status       Status              `json:"status"`
	FAQ          *faq.Entry          `json:"faq,omitempty"`
	Score        float64             `json:"score,omitempty"`
	EscalationID string              `json:"escalation_id,omitempty"`
	Priority     escalation.Priority `json:"priority,omitempty"`
	Message      string              `json:"message"`
}

// Assistant answers or escalates customer queries.
type Assistant struct {
	matcher   Matcher
	views     ViewRecorder
	escalator Escalator
	logger    *observability.Logger
}

// NewAssistant creates an assistant. views may be nil.
func NewAssistant(logger *observability.Logger, matcher Matcher, views ViewRecorder, escalator Escalator) *Assistant {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Assistant{
		matcher:   matcher,
		views:     views,
		escalator: escalator,
		logger:    logger.WithOperation("assist"),
	}
}

// Ask answers the query with the best FAQ or escalates it. A corpus failure
// is returned as faq.ErrCorpusUnavailable and nothing is escalated.
func (a *Assistant) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	text := strings.TrimSpace(req.Query.Text)
	if text == "" {
		return nil, faq.InputError("query text is required", nil)
	}
	req.Query.Text = text

	logger := a.logger.WithContext(ctx)

	best, ok, err := a.matcher.BestMatch(ctx, req.Query)
	if err != nil {
		if errors.Is(err, faq.ErrCorpusUnavailable) {
			logger.Error().Err(err).Msg("FAQ corpus unavailable, cannot answer")
		}
		return nil, err
	}

	if ok {
		if a.views != nil {
			// The answer is shown even if the view count cannot be updated.
			if err := a.views.RecordView(ctx, best.Entry.ID); err != nil {
				logger.Warn().Err(err).Str("faq_id", best.Entry.ID).Msg("Failed to record view for answer")
			}
		}

		entry := best.Entry
		logger.Info().
			Str("faq_id", entry.ID).
			Float64("score", best.Score).
			Msg("Answered from FAQ")
		return &Answer{
			Status:  StatusAnswered,
			FAQ:     &entry,
			Score:   best.Score,
			Message: entry.Answer,
		}, nil
	}

	priority := escalation.ClassifyPriority(text)
	id, err := a.escalator.Create(ctx, escalation.CreateRequest{
		QueryText: text,
		Priority:  priority,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("escalation_id", id).
		Str("priority", string(priority)).
		Msg("No confident FAQ match, escalated")

	return &Answer{
		Status:       StatusEscalated,
		EscalationID: id,
		Priority:     priority,
		Message:      EscalationMessage,
	}, nil
}
