package matching

import (
	"context"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Matcher scores, filters and ranks a corpus snapshot for one query.
// It keeps no per-query state and is safe for concurrent use.
type Matcher struct {
	pool   *ScoringPool
	policy Policy
	logger *observability.Logger
}

// NewMatcher creates a matcher on top of a scoring pool.
func NewMatcher(pool *ScoringPool, logger *observability.Logger) *Matcher {
	if pool == nil {
		pool = NewScoringPool(nil, 0, 0, logger, nil)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Matcher{
		pool:   pool,
		logger: logger.WithOperation("matcher"),
	}
}

// Match returns the active corpus entries whose score clears threshold, ranked
// and truncated to limit. Inactive entries are never scored or returned.
// An empty result means the query should be escalated. When scoring runs out
// of time the result is empty and marked TimedOut.
func (m *Matcher) Match(
	ctx context.Context,
	query faq.Query,
	threshold float64,
	corpus []faq.Entry,
	limit int,
) *faq.MatchResult {
	result := &faq.MatchResult{
		Candidates: []faq.ScoredCandidate{},
		Threshold:  threshold,
	}

	active := activeEntries(corpus, query.Category)
	if len(active) == 0 {
		return result
	}

	scores, err := m.pool.ScoreAll(ctx, query.Text, active)
	if err != nil {
		m.logger.Warn().
			Err(err).
			Int("corpus_size", len(active)).
			Msg("Scoring did not finish, failing open to escalation")
		result.TimedOut = true
		return result
	}
	result.Scored = len(active)

	accepted := make([]faq.ScoredCandidate, 0, len(active))
	for i, entry := range active {
		if m.policy.Accepts(scores[i], threshold) {
			accepted = append(accepted, faq.ScoredCandidate{Entry: entry, Score: scores[i]})
		}
	}

	result.Candidates = Rank(accepted, query.UserModels, limit)

	m.logger.Debug().
		Int("scored", result.Scored).
		Int("accepted", len(accepted)).
		Int("returned", len(result.Candidates)).
		Float64("threshold", threshold).
		Msg("Matched query against corpus")

	return result
}

// BestMatch returns the single best candidate, if any clears threshold.
func (m *Matcher) BestMatch(
	ctx context.Context,
	query faq.Query,
	threshold float64,
	corpus []faq.Entry,
) (faq.ScoredCandidate, bool) {
	return m.Match(ctx, query, threshold, corpus, MatchLimit).Best()
}

// activeEntries drops inactive entries and applies the optional category filter.
func activeEntries(corpus []faq.Entry, category *faq.Category) []faq.Entry {
	active := make([]faq.Entry, 0, len(corpus))
	for _, e := range corpus {
		if !e.IsActive {
			continue
		}
		if category != nil && e.Category != *category {
			continue
		}
		active = append(active, e)
	}
	return active
}
