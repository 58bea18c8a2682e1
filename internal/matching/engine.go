package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/cache"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// cacheNamespace namespaces cached match results.
const cacheNamespace = "match"

// CorpusSource supplies the FAQ entries the engine may present to users.
type CorpusSource interface {
	ActiveFAQs(ctx context.Context, category *faq.Category) ([]faq.Entry, error)
}

// SettingsSource supplies the process-wide confidence threshold.
type SettingsSource interface {
	ConfidenceThreshold(ctx context.Context) (float64, error)
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	DefaultThreshold float64
	SearchLimit      int
	CacheResults     bool
	CacheTTL         time.Duration
}

// SearchRequest is one search against the live corpus.
type SearchRequest struct {
	Query faq.Query
	// Limit <= 0 uses the configured search limit.
	Limit int
	// Threshold overrides the settings source when set.
	Threshold *float64
}

// Engine runs matches against the corpus and settings collaborators.
type Engine struct {
	corpus   CorpusSource
	settings SettingsSource
	matcher  *Matcher
	cache    cache.Client
	logger   *observability.Logger
	metrics  *observability.MatchMetrics
	config   EngineConfig
}

// NewEngine creates a match engine. settings and cacheClient may be nil.
func NewEngine(
	logger *observability.Logger,
	corpus CorpusSource,
	settings SettingsSource,
	matcher *Matcher,
	cacheClient cache.Client,
	metrics *observability.MatchMetrics,
	cfg EngineConfig,
) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if matcher == nil {
		matcher = NewMatcher(nil, logger)
	}
	if cfg.DefaultThreshold < 0 {
		cfg.DefaultThreshold = 0
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = SearchLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Engine{
		corpus:   corpus,
		settings: settings,
		matcher:  matcher,
		cache:    cacheClient,
		logger:   logger.WithOperation("match_engine"),
		metrics:  metrics,
		config:   cfg,
	}
}

// Search matches a query against the active corpus. A corpus failure is
// returned as faq.ErrCorpusUnavailable and never as an empty result.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*faq.MatchResult, error) {
	start := time.Now()

	limit := req.Limit
	if limit <= 0 {
		limit = e.config.SearchLimit
	}

	threshold := e.threshold(ctx, req.Threshold)
	logger := e.logger.WithContext(ctx)

	var key string
	if e.cache != nil && e.config.CacheResults {
		key = e.cacheKey(req.Query, threshold, limit)
		if cached, ok := e.lookup(ctx, key); ok {
			logger.Debug().Str("cache_key", key).Msg("Match cache hit")
			e.metrics.RecordSearch(outcome(cached), time.Since(start).Seconds(), len(cached.Candidates))
			return cached, nil
		}
	}

	corpus, err := e.corpus.ActiveFAQs(ctx, req.Query.Category)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load FAQ corpus")
		e.metrics.RecordSearch(observability.OutcomeUnavailable, time.Since(start).Seconds(), 0)
		return nil, faq.CorpusError("load active faqs", err)
	}

	result := e.matcher.Match(ctx, req.Query, threshold, corpus, limit)

	if key != "" && !result.TimedOut {
		e.store(ctx, key, result)
	}

	logger.Info().
		Int("corpus_size", len(corpus)).
		Int("results", len(result.Candidates)).
		Float64("threshold", threshold).
		Bool("timed_out", result.TimedOut).
		Dur("latency", time.Since(start)).
		Msg("FAQ search completed")

	e.metrics.RecordSearch(outcome(result), time.Since(start).Seconds(), len(result.Candidates))
	return result, nil
}

// BestMatch returns the best candidate for query, or false when the query
// should be escalated.
func (e *Engine) BestMatch(ctx context.Context, query faq.Query) (faq.ScoredCandidate, bool, error) {
	result, err := e.Search(ctx, SearchRequest{Query: query, Limit: MatchLimit})
	if err != nil {
		return faq.ScoredCandidate{}, false, err
	}
	best, ok := result.Best()
	return best, ok, nil
}

// Threshold returns the threshold the next search would use.
func (e *Engine) Threshold(ctx context.Context) float64 {
	return e.threshold(ctx, nil)
}

// InvalidateCache drops all cached match results. Call after corpus writes.
func (e *Engine) InvalidateCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.DeleteByPrefix(ctx, cache.Key(cacheNamespace, ""))
}

// threshold resolves the threshold once per call: explicit override, then the
// settings source, then the configured default.
func (e *Engine) threshold(ctx context.Context, override *float64) float64 {
	if override != nil {
		return *override
	}
	if e.settings == nil {
		return e.config.DefaultThreshold
	}
	t, err := e.settings.ConfidenceThreshold(ctx)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Float64("default", e.config.DefaultThreshold).
			Msg("Failed to read confidence threshold, using default")
		return e.config.DefaultThreshold
	}
	return t
}

func (e *Engine) cacheKey(q faq.Query, threshold float64, limit int) string {
	parts := []string{
		Normalize(q.Text),
		strings.Join(faq.ModelKeys(q.UserModels), ","),
		strconv.FormatFloat(threshold, 'f', -1, 64),
		strconv.Itoa(limit),
	}
	if q.Category != nil {
		parts = append(parts, "cat:"+string(*q.Category))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return cache.Key(cacheNamespace, hex.EncodeToString(hash[:16]))
}

func (e *Engine) lookup(ctx context.Context, key string) (*faq.MatchResult, bool) {
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn().Err(err).Msg("Match cache read failed")
		}
		return nil, false
	}

	var result faq.MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		e.logger.Warn().Err(err).Msg("Discarding undecodable cached match")
		return nil, false
	}
	return &result, true
}

func (e *Engine) store(ctx context.Context, key string, result *faq.MatchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to encode match for cache")
		return
	}
	if err := e.cache.Set(ctx, key, data, e.config.CacheTTL); err != nil {
		e.logger.Warn().Err(err).Msg("Match cache write failed")
	}
}

func outcome(result *faq.MatchResult) string {
	switch {
	case result.TimedOut:
		return observability.OutcomeTimeout
	case result.Empty():
		return observability.OutcomeEscalate
	default:
		return observability.OutcomeMatched
	}
}
