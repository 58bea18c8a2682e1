package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/cache"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// DefaultChannel is the pub/sub channel escalation events are published on.
const DefaultChannel = "escalations.created"

// Repository persists escalations.
type Repository interface {
	CreateEscalation(ctx context.Context, e *Escalation) error
	GetEscalation(ctx context.Context, id string) (*Escalation, error)
	ListEscalations(ctx context.Context, status *Status) ([]*Escalation, error)
	// UpdateEscalationStatus moves id from one status to another and returns
	// ErrStaleStatus if the stored status is no longer from.
	UpdateEscalationStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

// CreateRequest describes a new escalation.
type CreateRequest struct {
	QueryText string
	Priority  Priority
	UserID    string
	SessionID string
}

// Event is published when an escalation is created.
type Event struct {
	EscalationID string    `json:"escalation_id"`
	Priority     Priority  `json:"priority"`
	UserID       string    `json:"user_id,omitempty"`
	QueryText    string    `json:"query_text"`
	CreatedAt    time.Time `json:"created_at"`
}

// Service creates and advances escalations.
type Service struct {
	repo      Repository
	publisher cache.Publisher
	channel   string
	logger    *observability.Logger
	metrics   *observability.MatchMetrics
	now       func() time.Time
}

// NewService creates an escalation service. A nil publisher disables events.
func NewService(
	logger *observability.Logger,
	repo Repository,
	publisher cache.Publisher,
	channel string,
	metrics *observability.MatchMetrics,
) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if publisher == nil {
		publisher = cache.NopPublisher{}
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		channel:   channel,
		logger:    logger.WithOperation("escalation"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Create stores a new pending escalation and returns its id.
func (s *Service) Create(ctx context.Context, req CreateRequest) (string, error) {
	text := strings.TrimSpace(req.QueryText)
	if text == "" {
		return "", faq.InputError("escalation query text is required", nil)
	}

	priority := req.Priority
	if priority == "" {
		priority = ClassifyPriority(text)
	} else if _, err := ParsePriority(string(priority)); err != nil {
		return "", faq.InputError("create escalation", err)
	}

	now := s.now().UTC()
	e := &Escalation{
		ID:        uuid.NewString(),
		QueryText: text,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Priority:  priority,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	logger := s.logger.WithContext(ctx)
	if err := s.repo.CreateEscalation(ctx, e); err != nil {
		logger.Error().Err(err).Str("priority", string(priority)).Msg("Failed to create escalation")
		return "", fmt.Errorf("create escalation: %w", err)
	}
	s.metrics.RecordEscalation(string(priority))

	event := Event{
		EscalationID: e.ID,
		Priority:     e.Priority,
		UserID:       e.UserID,
		QueryText:    e.QueryText,
		CreatedAt:    e.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		logger.Warn().Err(err).Str("escalation_id", e.ID).Msg("Failed to publish escalation event")
	}

	logger.Info().
		Str("escalation_id", e.ID).
		Str("priority", string(priority)).
		Msg("Escalation created")

	return e.ID, nil
}

// Get returns one escalation.
func (s *Service) Get(ctx context.Context, id string) (*Escalation, error) {
	return s.repo.GetEscalation(ctx, id)
}

// List returns escalations, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *Status) ([]*Escalation, error) {
	return s.repo.ListEscalations(ctx, status)
}

// Transition moves an escalation to a new status. Illegal moves return
// ErrInvalidTransition and leave the escalation unchanged.
func (s *Service) Transition(ctx context.Context, id string, to Status) (*Escalation, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	e, err := s.repo.GetEscalation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(e.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateEscalationStatus(ctx, id, e.Status, to, now); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}

	s.logger.WithContext(ctx).Info().
		Str("escalation_id", id).
		Str("from", string(e.Status)).
		Str("to", string(to)).
		Msg("Escalation status changed")

	e.Status = to
	e.UpdatedAt = now
	if to == StatusResolved {
		e.ResolvedAt = &now
	}
	return e, nil
}

// Watch delivers escalation events published on the service channel to handle
// until ctx ends or the subscription closes. Undecodable messages are skipped.
func (s *Service) Watch(ctx context.Context, sub cache.Subscriber, handle func(Event)) error {
	msgs, unsubscribe, err := sub.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	defer unsubscribe()

	s.logger.Info().Str("channel", s.channel).Msg("Watching escalation events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgs:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				s.logger.Warn().Err(err).Msg("Skipping undecodable escalation event")
				continue
			}
			handle(event)
		}
	}
}
