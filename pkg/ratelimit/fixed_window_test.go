package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/assignment-engine/pkg/ratelimit"
)

func TestFixedWindowAllow(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), time.Hour, 2)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.True(t, first.Allowed)
	require.EqualValues(t, 1, first.Remaining)

	second, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.True(t, second.Allowed)
	require.EqualValues(t, 0, second.Remaining)

	third, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.False(t, third.Allowed)
	require.Greater(t, third.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, third.RetryAfter, time.Hour)
}

func TestFixedWindowKeysAreIndependent(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), time.Hour, 1)
	ctx := context.Background()

	used, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	require.True(t, used.Allowed)

	blocked, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	other, err := limiter.Allow(ctx, "b")
	require.NoError(t, err)
	require.True(t, other.Allowed)
}

func TestFixedWindowPeekDoesNotConsume(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), time.Hour, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Peek(ctx, "key")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
