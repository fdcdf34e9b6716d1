package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestTryAcquireSucceedsOnce(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := New(client, "mgmt:https://example.com", time.Minute)
	b := New(client, "mgmt:https://example.com", time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a second acquirer must lose the CAS")
}

func TestReleaseOnlyDropsOwnValue(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := New(client, "mgmt:https://example.com", time.Minute)
	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale Lock built with a different value must not be able to
	// release the key out from under the real owner.
	stale := &Lock{client: client, key: a.key, value: "not-the-owner"}
	require.NoError(t, stale.Release(ctx))

	b := New(client, "mgmt:https://example.com", time.Minute)
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "key must still be held after a foreign release attempt")

	require.NoError(t, a.Release(ctx))
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "key must be free after the real owner releases it")
}

func TestJitterStaysWithinBounds(t *testing.T) {
	min, max := 10*time.Second, 20*time.Second
	for _, f := range []float64{0, 0.5, 0.999} {
		d := Jitter(min, max, func() float64 { return f })
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}
