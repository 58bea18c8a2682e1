package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGet(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "match:abc", []byte("value"), time.Minute))

	got, err := c.Get(ctx, "match:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	_, err = c.Get(ctx, "match:missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), -time.Second))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "match:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "match:2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "stats:1", []byte("c"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "match:"))

	_, err := c.Get(ctx, "match:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "stats:1")
	assert.NoError(t, err)
}

func TestMemoryClient_EvictsWhenFull(t *testing.T) {
	c := NewMemoryClient(2)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss, "entry expiring first is evicted")
}

func TestMemoryClient_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryClient(1)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "match:abc:10", Key("match", "abc", "10"))
}
