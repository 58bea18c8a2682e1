package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

var errUnknownFAQ = errors.New("faq not found")

// counterSink is an in-process Sink guarded by a mutex.
type counterSink struct {
	mu         sync.Mutex
	entries    map[string]*faq.Entry
	failWrites bool
	writes     int
}

func newCounterSink(ids ...string) *counterSink {
	s := &counterSink{entries: make(map[string]*faq.Entry)}
	for _, id := range ids {
		s.entries[id] = &faq.Entry{ID: id, IsActive: true}
	}
	return s
}

func (s *counterSink) IncrementView(ctx context.Context, faqID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failWrites {
		return errors.New("database is locked")
	}
	e, ok := s.entries[faqID]
	if !ok {
		return errUnknownFAQ
	}
	e.ViewCount++
	return nil
}

func (s *counterSink) IncrementRating(ctx context.Context, faqID string, helpful bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failWrites {
		return errors.New("database is locked")
	}
	e, ok := s.entries[faqID]
	if !ok {
		return errUnknownFAQ
	}
	if helpful {
		e.HelpfulCount++
	} else {
		e.NotHelpfulCount++
	}
	return nil
}

func (s *counterSink) GetFAQ(ctx context.Context, faqID string) (*faq.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[faqID]
	if !ok {
		return nil, errUnknownFAQ
	}
	copied := *e
	return &copied, nil
}

func TestService_RecordView(t *testing.T) {
	sink := newCounterSink("faq-1")
	svc := NewService(observability.NopLogger(), sink, sink, nil)

	require.NoError(t, svc.RecordView(context.Background(), "faq-1"))

	stats, err := svc.Stats(context.Background(), "faq-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ViewCount)
	assert.Zero(t, stats.HelpfulCount)
	assert.Zero(t, stats.NotHelpfulCount)
}

func TestService_RecordRating(t *testing.T) {
	sink := newCounterSink("faq-1")
	svc := NewService(observability.NopLogger(), sink, sink, nil)

	require.NoError(t, svc.RecordRating(context.Background(), "faq-1", true))
	require.NoError(t, svc.RecordRating(context.Background(), "faq-1", true))
	require.NoError(t, svc.RecordRating(context.Background(), "faq-1", false))

	stats, err := svc.Stats(context.Background(), "faq-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.HelpfulCount)
	assert.Equal(t, int64(1), stats.NotHelpfulCount)
	assert.Zero(t, stats.ViewCount)
	assert.InDelta(t, 2.0/3.0, stats.HelpfulRatio, 1e-9)
}

func TestService_ConcurrentViewsAddExactlyK(t *testing.T) {
	const k = 200
	sink := newCounterSink("faq-1")
	svc := NewService(observability.NopLogger(), sink, sink, nil)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.RecordView(context.Background(), "faq-1"))
		}()
	}
	wg.Wait()

	stats, err := svc.Stats(context.Background(), "faq-1")
	require.NoError(t, err)
	assert.Equal(t, int64(k), stats.ViewCount)
}

func TestService_WriteFailureIsWrappedAndNotRetried(t *testing.T) {
	metrics := observability.NewMatchMetrics(nil)
	sink := newCounterSink("faq-1")
	sink.failWrites = true
	svc := NewService(observability.NopLogger(), sink, sink, metrics)

	err := svc.RecordView(context.Background(), "faq-1")
	assert.ErrorIs(t, err, faq.ErrFeedbackWrite)

	err = svc.RecordRating(context.Background(), "faq-1", false)
	assert.ErrorIs(t, err, faq.ErrFeedbackWrite)

	assert.Equal(t, 2, sink.writes)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedbackWrites.WithLabelValues(KindView, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedbackWrites.WithLabelValues(KindRating, "error")))
}

func TestService_UnknownFAQ(t *testing.T) {
	sink := newCounterSink()
	svc := NewService(observability.NopLogger(), sink, sink, nil)

	err := svc.RecordView(context.Background(), "missing")

	assert.ErrorIs(t, err, faq.ErrFeedbackWrite)
	assert.ErrorIs(t, err, errUnknownFAQ)
}

func TestService_RejectsBlankID(t *testing.T) {
	sink := newCounterSink()
	svc := NewService(observability.NopLogger(), sink, sink, nil)

	assert.ErrorIs(t, svc.RecordView(context.Background(), " "), faq.ErrInvalidInput)
	assert.ErrorIs(t, svc.RecordRating(context.Background(), "", true), faq.ErrInvalidInput)
	assert.Zero(t, sink.writes)
}

func TestService_StatsWithoutReader(t *testing.T) {
	svc := NewService(nil, newCounterSink("faq-1"), nil, nil)

	_, err := svc.Stats(context.Background(), "faq-1")
	assert.Error(t, err)
}
