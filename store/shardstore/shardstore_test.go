package shardstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache/expiration"
	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/shardstore"
	"github.com/unkn0wn-root/asidecache/store/storetest"
)

func newStore(t *testing.T, clk expiration.Clock) *shardstore.Store {
	t.Helper()
	s, err := shardstore.New(context.Background(), shardstore.Config{Shards: 16, Clock: clk})
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t, nil) }, storetest.Options{})
}

func TestExpiryWithClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := expiration.ClockFunc(func() time.Time { return now })
	s := newStore(t, clk)
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	ttl, err := s.TTL(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(2 * time.Minute)
	require.Equal(t, 2, s.Len())

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, s.Len())

	_, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExpiredReadDoesNotEraseConcurrentSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var (
		s      *shardstore.Store
		armed  bool
		landed bool
	)
	// Set "k" again between the read of its expired frame and the expiry check.
	clk := expiration.ClockFunc(func() time.Time {
		if armed {
			armed = false
			require.NoError(t, s.Set(ctx, "k", []byte("fresh"), time.Hour))
			landed = true
		}
		return now
	})
	s = newStore(t, clk)
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Minute))
	now = now.Add(2 * time.Minute)

	armed = true
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "the read saw the expired frame")
	require.True(t, landed)

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", string(v))
}

func TestSweepRechecksBeforeDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := expiration.ClockFunc(func() time.Time { return now })
	s := newStore(t, clk)
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Minute))
	now = now.Add(2 * time.Minute)
	require.NoError(t, s.Set(ctx, "k", []byte("fresh"), time.Hour))

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", string(v))
}
