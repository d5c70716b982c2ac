package asidecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache/store/memstore"
)

func TestResolved(t *testing.T) {
	v, ok, err := Resolved(42).Await(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestGoSuccessAndError(t *testing.T) {
	ctx := context.Background()

	v, ok, err := Go(ctx, func(context.Context) (string, error) { return "x", nil }).Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "x", v)

	boom := errors.New("boom")
	_, ok, err = Go(ctx, func(context.Context) (string, error) { return "", boom }).Await(ctx)
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
}

func TestGoRecoversPanic(t *testing.T) {
	ctx := context.Background()
	f := Go(ctx, func(context.Context) (int, error) { panic("kaboom") })
	_, ok, err := f.Await(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaboom")
	require.False(t, ok)
}

func TestAwaitHonoursCallerContext(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok, err := f.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, ok)

	close(release)
	v, ok, err := f.Await(context.Background())
	require.NoError(t, err, "work keeps running after the caller gave up")
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestAsyncForms(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, memstore.New(), nil)

	_, _, err := cc.SetAsync(ctx, "user:1", &user{ID: "1"}, time.Minute).Await(ctx)
	require.NoError(t, err)

	v, ok, err := cc.GetAsync(ctx, "user:1").Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v.ID)

	exists, ok, err := cc.ExistsAsync(ctx, "user:1").Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, exists)

	d, ok, err := cc.TimeToLiveAsync(ctx, "user:1").Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Greater(t, d, 59*time.Second)

	_, ok, err = cc.TimeToLiveAsync(ctx, "absent").Await(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err = cc.GetOrComputeAsync(ctx, "user:2", func(context.Context) (*user, error) {
		return &user{ID: "2"}, nil
	}, 0).Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v.ID)

	_, _, err = cc.RemoveAsync(ctx, "user:1").Await(ctx)
	require.NoError(t, err)
	_, _, err = cc.RemoveByPatternAsync(ctx, "user:*").Await(ctx)
	require.NoError(t, err)
	_, _, err = cc.ClearAsync(ctx).Await(ctx)
	require.NoError(t, err)

	exists, _, err = cc.ExistsAsync(ctx, "user:2").Await(ctx)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetOrComputeAsyncProducerPanic(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, memstore.New(), nil)
	_, ok, err := cc.GetOrComputeAsync(ctx, "k", func(context.Context) (*user, error) {
		panic("producer exploded")
	}, 0).Await(ctx)
	require.Error(t, err)
	require.False(t, ok)

	exists, err := cc.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, exists)
}
