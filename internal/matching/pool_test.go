package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

func entries(n int) []faq.Entry {
	out := make([]faq.Entry, n)
	for i := range out {
		out[i] = faq.Entry{
			ID:       fmt.Sprintf("faq-%03d", i),
			Question: fmt.Sprintf("question %d", i),
			IsActive: true,
		}
	}
	return out
}

func TestScoringPool_ScoresInEntryOrder(t *testing.T) {
	scorer := ScorerFunc(func(query, question, answer string) (float64, error) {
		var n int
		_, err := fmt.Sscanf(question, "question %d", &n)
		return float64(n), err
	})
	pool := NewScoringPool(scorer, 4, time.Second, observability.NopLogger(), nil)

	scores, err := pool.ScoreAll(context.Background(), "q", entries(50))

	require.NoError(t, err)
	require.Len(t, scores, 50)
	for i, s := range scores {
		assert.Equal(t, float64(i), s)
	}
}

func TestScoringPool_EmptyCorpus(t *testing.T) {
	pool := NewScoringPool(nil, 0, 0, nil, nil)

	scores, err := pool.ScoreAll(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScoringPool_RecoversScorerFailures(t *testing.T) {
	metrics := observability.NewMatchMetrics(nil)
	scorer := ScorerFunc(func(query, question, answer string) (float64, error) {
		switch question {
		case "question 1":
			return 0, errors.New("backend down")
		case "question 2":
			panic("scorer bug")
		case "question 3":
			return math.NaN(), nil
		case "question 4":
			return -1, nil
		}
		return 0.5, nil
	})
	pool := NewScoringPool(scorer, 2, time.Second, observability.NopLogger(), metrics)

	scores, err := pool.ScoreAll(context.Background(), "q", entries(6))

	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 0, 0, 0, 0.5}, scores)
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.ScoringFailures))
}

func TestScoringPool_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	scorer := ScorerFunc(func(query, question, answer string) (float64, error) {
		<-release
		return 1, nil
	})
	pool := NewScoringPool(scorer, 2, 20*time.Millisecond, observability.NopLogger(), nil)

	start := time.Now()
	scores, err := pool.ScoreAll(context.Background(), "q", entries(10))

	assert.ErrorIs(t, err, ErrScoringTimeout)
	assert.Nil(t, scores)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScoringPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewScoringPool(nil, 2, time.Second, observability.NopLogger(), nil)
	_, err := pool.ScoreAll(ctx, "q", entries(10))

	assert.ErrorIs(t, err, ErrScoringTimeout)
}

func TestScoringPool_BoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	scorer := ScorerFunc(func(query, question, answer string) (float64, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return 0.1, nil
	})
	pool := NewScoringPool(scorer, 3, 5*time.Second, observability.NopLogger(), nil)

	_, err := pool.ScoreAll(context.Background(), "q", entries(30))

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}
