// Package feedback records FAQ usage signals: views and helpful ratings.
package feedback

import (
	"context"
	"errors"
	"strings"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Feedback kinds, used as metric labels.
const (
	KindView   = "view"
	KindRating = "rating"
)

var errNoStatsReader = errors.New("stats reader not configured")

// Sink persists counter increments. Each call must add exactly one to exactly
// one counter, atomically with respect to concurrent calls.
type Sink interface {
	IncrementView(ctx context.Context, faqID string) error
	IncrementRating(ctx context.Context, faqID string, helpful bool) error
}

// StatsReader reads the current counters of an FAQ.
type StatsReader interface {
	GetFAQ(ctx context.Context, faqID string) (*faq.Entry, error)
}

// Stats is the usage summary of one FAQ.
type Stats struct {
	FAQID           string  `json:"faq_id"`
	ViewCount       int64   `json:"view_count"`
	HelpfulCount    int64   `json:"helpful_count"`
	NotHelpfulCount int64   `json:"not_helpful_count"`
	HelpfulRatio    float64 `json:"helpful_ratio"`
}

// Service records feedback. Writes are not idempotent and are never retried.
type Service struct {
	sink    Sink
	stats   StatsReader
	logger  *observability.Logger
	metrics *observability.MatchMetrics
}

// NewService creates a feedback service. stats may be nil when Stats is unused.
func NewService(logger *observability.Logger, sink Sink, stats StatsReader, metrics *observability.MatchMetrics) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		sink:    sink,
		stats:   stats,
		logger:  logger.WithOperation("feedback"),
		metrics: metrics,
	}
}

// RecordView adds one to the FAQ's view count.
func (s *Service) RecordView(ctx context.Context, faqID string) error {
	if err := validateID(faqID); err != nil {
		return err
	}

	err := s.sink.IncrementView(ctx, faqID)
	s.metrics.RecordFeedback(KindView, err)
	if err != nil {
		s.logger.WithContext(ctx).Error().
			Err(err).
			Str("faq_id", faqID).
			Msg("Failed to record FAQ view")
		return faq.FeedbackError("record view", err)
	}
	return nil
}

// RecordRating adds one to the helpful or not-helpful count.
func (s *Service) RecordRating(ctx context.Context, faqID string, helpful bool) error {
	if err := validateID(faqID); err != nil {
		return err
	}

	err := s.sink.IncrementRating(ctx, faqID, helpful)
	s.metrics.RecordFeedback(KindRating, err)
	if err != nil {
		s.logger.WithContext(ctx).Error().
			Err(err).
			Str("faq_id", faqID).
			Bool("helpful", helpful).
			Msg("Failed to record FAQ rating")
		return faq.FeedbackError("record rating", err)
	}
	return nil
}

// Stats returns the counters of one FAQ.
func (s *Service) Stats(ctx context.Context, faqID string) (*Stats, error) {
	if err := validateID(faqID); err != nil {
		return nil, err
	}
	if s.stats == nil {
		return nil, faq.FeedbackError("read stats", errNoStatsReader)
	}

	entry, err := s.stats.GetFAQ(ctx, faqID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		FAQID:           entry.ID,
		ViewCount:       entry.ViewCount,
		HelpfulCount:    entry.HelpfulCount,
		NotHelpfulCount: entry.NotHelpfulCount,
		HelpfulRatio:    entry.HelpfulRatio(),
	}, nil
}

func validateID(faqID string) error {
	if strings.TrimSpace(faqID) == "" {
		return faq.InputError("faq id is required", nil)
	}
	return nil
}
