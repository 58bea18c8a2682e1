package matching

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/cache"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

type fakeCorpus struct {
	mu      sync.Mutex
	entries []faq.Entry
	err     error
	calls   int
}

func (f *fakeCorpus) ActiveFAQs(ctx context.Context, category *faq.Category) ([]faq.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeCorpus) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSettings struct {
	threshold float64
	err       error
}

func (f fakeSettings) ConfidenceThreshold(ctx context.Context) (float64, error) {
	return f.threshold, f.err
}

func newTestEngine(corpus CorpusSource, settings SettingsSource, c cache.Client, metrics *observability.MatchMetrics) *Engine {
	return NewEngine(observability.NopLogger(), corpus, settings, newTestMatcher(), c, metrics, EngineConfig{
		DefaultThreshold: defaultThreshold,
		CacheResults:     c != nil,
	})
}

func TestEngine_Search(t *testing.T) {
	corpus := &fakeCorpus{entries: sampleCorpus()}
	engine := newTestEngine(corpus, nil, nil, nil)

	result, err := engine.Search(context.Background(), SearchRequest{Query: faq.Query{Text: "How do I charge my scooter"}})

	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "faq-charge", result.Candidates[0].Entry.ID)
	assert.Equal(t, defaultThreshold, result.Threshold)
}

func TestEngine_CorpusUnavailable(t *testing.T) {
	metrics := observability.NewMatchMetrics(nil)
	corpus := &fakeCorpus{err: errors.New("connection refused")}
	engine := newTestEngine(corpus, nil, nil, metrics)

	result, err := engine.Search(context.Background(), SearchRequest{Query: faq.Query{Text: "charge"}})

	assert.Nil(t, result, "a corpus failure must not look like an empty match")
	assert.ErrorIs(t, err, faq.ErrCorpusUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Searches.WithLabelValues(observability.OutcomeUnavailable)))

	_, _, err = engine.BestMatch(context.Background(), faq.Query{Text: "charge"})
	assert.ErrorIs(t, err, faq.ErrCorpusUnavailable)
}

func TestEngine_ThresholdResolution(t *testing.T) {
	corpus := &fakeCorpus{entries: sampleCorpus()}
	query := faq.Query{Text: "What is the weather today"}

	t.Run("settings source", func(t *testing.T) {
		engine := newTestEngine(corpus, fakeSettings{threshold: 0}, nil, nil)
		result, err := engine.Search(context.Background(), SearchRequest{Query: query})
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.Threshold)
		assert.Len(t, result.Candidates, 4)
	})

	t.Run("settings failure falls back to default", func(t *testing.T) {
		engine := newTestEngine(corpus, fakeSettings{err: errors.New("no row")}, nil, nil)
		assert.Equal(t, defaultThreshold, engine.Threshold(context.Background()))
	})

	t.Run("explicit override wins", func(t *testing.T) {
		engine := newTestEngine(corpus, fakeSettings{threshold: 0}, nil, nil)
		override := 2.0
		result, err := engine.Search(context.Background(), SearchRequest{Query: query, Threshold: &override})
		require.NoError(t, err)
		assert.True(t, result.Empty())
		assert.Equal(t, 2.0, result.Threshold)
	})
}

func TestEngine_LimitDefaults(t *testing.T) {
	many := make([]faq.Entry, 0, 25)
	for _, e := range entries(25) {
		e.Question = "charging " + e.Question
		many = append(many, e)
	}
	engine := newTestEngine(&fakeCorpus{entries: many}, fakeSettings{threshold: 0}, nil, nil)

	result, err := engine.Search(context.Background(), SearchRequest{Query: faq.Query{Text: "charging"}})
	require.NoError(t, err)
	assert.Len(t, result.Candidates, SearchLimit)

	best, ok, err := engine.BestMatch(context.Background(), faq.Query{Text: "charging"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Candidates[0].Entry.ID, best.Entry.ID)
}

func TestEngine_CachesResults(t *testing.T) {
	mem := cache.NewMemoryClient(100)
	defer mem.Close()

	corpus := &fakeCorpus{entries: sampleCorpus()}
	engine := newTestEngine(corpus, nil, mem, nil)
	req := SearchRequest{Query: faq.Query{Text: "charge my scooter", UserModels: []faq.ScooterModel{"450X"}}}

	first, err := engine.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, corpus.Calls())
	assert.Equal(t, resultIDs(first), resultIDs(second))

	other := req
	other.Query.Text = "track my order"
	_, err = engine.Search(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, corpus.Calls())

	require.NoError(t, engine.InvalidateCache(context.Background()))
	_, err = engine.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, corpus.Calls())
}

func TestEngine_CacheKeyNormalizesQuery(t *testing.T) {
	engine := newTestEngine(&fakeCorpus{}, nil, nil, nil)

	a := engine.cacheKey(faq.Query{Text: "How do I charge?", UserModels: []faq.ScooterModel{"450X", "Rizta"}}, 0.15, 10)
	b := engine.cacheKey(faq.Query{Text: "how do i  CHARGE", UserModels: []faq.ScooterModel{"rizta", "450x"}}, 0.15, 10)
	c := engine.cacheKey(faq.Query{Text: "how do i charge"}, 0.2, 10)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEngine_RecordsOutcomes(t *testing.T) {
	metrics := observability.NewMatchMetrics(nil)
	engine := newTestEngine(&fakeCorpus{entries: sampleCorpus()}, nil, nil, metrics)

	_, err := engine.Search(context.Background(), SearchRequest{Query: faq.Query{Text: "How do I charge my scooter"}})
	require.NoError(t, err)
	_, err = engine.Search(context.Background(), SearchRequest{Query: faq.Query{Text: "Bluetooth pairing fails"}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Searches.WithLabelValues(observability.OutcomeMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Searches.WithLabelValues(observability.OutcomeEscalate)))
}
