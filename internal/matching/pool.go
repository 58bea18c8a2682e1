package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// ErrScoringTimeout is returned when a corpus could not be scored in time.
var ErrScoringTimeout = errors.New("scoring timeout")

// ScoringPool scores a corpus against one query on a bounded set of workers.
type ScoringPool struct {
	scorer  Scorer
	workers int
	timeout time.Duration
	logger  *observability.Logger
	metrics *observability.MatchMetrics
}

// NewScoringPool creates a scoring pool. Non-positive workers or timeout fall
// back to 8 workers and 2 seconds.
func NewScoringPool(
	scorer Scorer,
	workers int,
	timeout time.Duration,
	logger *observability.Logger,
	metrics *observability.MatchMetrics,
) *ScoringPool {
	if scorer == nil {
		scorer = NewTrigramScorer()
	}
	if workers <= 0 {
		workers = 8
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ScoringPool{
		scorer:  scorer,
		workers: workers,
		timeout: timeout,
		logger:  logger.WithOperation("scoring_pool"),
		metrics: metrics,
	}
}

// ScoreAll returns one score per entry, in entry order. A candidate whose
// scorer fails scores 0. If the whole corpus is not scored before the pool
// timeout or ctx ends, ScoreAll returns ErrScoringTimeout and no scores.
func (p *ScoringPool) ScoreAll(ctx context.Context, query string, entries []faq.Entry) ([]float64, error) {
	if len(entries) == 0 {
		return []float64{}, nil
	}

	scoreCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	work := make(chan int, len(entries))
	for i := range entries {
		work <- i
	}
	close(work)

	// Each worker writes only its own indices.
	scores := make([]float64, len(entries))
	var scored atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < p.workers && w < len(entries); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if scoreCtx.Err() != nil {
					return
				}
				scores[i] = p.scoreOne(query, entries[i])
				scored.Add(1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Workers stop early once the deadline passes.
		if scored.Load() != int64(len(entries)) {
			return nil, fmt.Errorf("%w after %v", ErrScoringTimeout, p.timeout)
		}
		return scores, nil
	case <-scoreCtx.Done():
		return nil, fmt.Errorf("%w after %v", ErrScoringTimeout, p.timeout)
	}
}

// scoreOne never panics; failures count as zero similarity.
func (p *ScoringPool) scoreOne(query string, entry faq.Entry) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn().
				Str("faq_id", entry.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("Scorer panicked, scoring candidate as zero")
			p.metrics.RecordScoringFailure()
			score = 0
		}
	}()

	s, err := p.scorer.Score(query, entry.Question, entry.Answer)
	if err != nil {
		p.logger.Warn().
			Err(faq.ScoringError("score candidate", err)).
			Str("faq_id", entry.ID).
			Msg("Scorer failed, scoring candidate as zero")
		p.metrics.RecordScoringFailure()
		return 0
	}
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		p.logger.Warn().
			Str("faq_id", entry.ID).
			Float64("score", s).
			Msg("Scorer returned an invalid score, scoring candidate as zero")
		p.metrics.RecordScoringFailure()
		return 0
	}
	return s
}
