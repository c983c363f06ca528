package edgecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
)

func TestScheduleKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "schedule:05:12", ScheduleKey("05", 12))
	assert.Equal(t, "meta", MetaKey)
}

func TestDisabledCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := New(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.Equal(t, DefaultTTL, c.ttl)

	require.NoError(t, c.Set(ctx, MetaKey, map[string]string{"a": "b"}))

	var dest map[string]string
	err = c.Get(ctx, MetaKey, &dest)
	assert.True(t, errors.Is(err, domerrors.ErrCacheMiss))
	assert.Nil(t, dest)

	assert.NoError(t, c.Flush(ctx))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNilCache(t *testing.T) {
	t.Parallel()
	var c *Cache
	assert.False(t, c.Enabled())
	err := c.Get(context.Background(), "x", &struct{}{})
	assert.True(t, errors.Is(err, domerrors.ErrCacheMiss))
}

func TestNewWithClient_DefaultTTL(t *testing.T) {
	t.Parallel()
	c := NewWithClient(nil, 0)
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, time.Minute, NewWithClient(nil, time.Minute).ttl)
}

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Options{URL: "http://not-redis"})
	assert.Error(t, err)
}
