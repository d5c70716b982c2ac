package asidecache

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/memstore"
)

// countingStore records Set and SetMany traffic on top of a memstore.
type countingStore struct {
	*memstore.Store
	mu          sync.Mutex
	sets        int
	batches     []int
	touches     []string
	unsupported bool
}

func newCountingStore() *countingStore { return &countingStore{Store: memstore.New()} }

func (s *countingStore) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.Store.Set(ctx, key, v, ttl)
}

func (s *countingStore) SetMany(ctx context.Context, entries []store.Entry) error {
	if s.unsupported {
		return errors.ErrUnsupported
	}
	s.mu.Lock()
	s.batches = append(s.batches, len(entries))
	s.mu.Unlock()
	return s.Store.SetMany(ctx, entries)
}

func (s *countingStore) Touch(ctx context.Context, key string) error {
	s.mu.Lock()
	s.touches = append(s.touches, key)
	s.mu.Unlock()
	return nil
}

func collect[V any](t *testing.T, seq iter.Seq2[Result[V], error]) ([]Result[V], error) {
	t.Helper()
	var out []Result[V]
	for r, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

func newStringCache(t *testing.T, s store.Store, optsOpt func(*Options[string])) Cache[string] {
	t.Helper()
	opts := Options[string]{Store: s}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	require.NoError(t, err)
	return cc
}

func TestStreamHitsAndMissesCoalesced(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	hooks := &recHooks{}
	cc := newStringCache(t, s, func(o *Options[string]) { o.Hooks = hooks })
	require.NoError(t, cc.Set(ctx, "a", "cached-a", 0))

	var produced atomic.Int64
	items := Pairs(
		Item[string]{Key: "a", Source: Func(func(context.Context) (string, error) {
			produced.Add(1)
			return "fresh-a", nil
		})},
		Item[string]{Key: "b", Source: Value("b")},
		Item[string]{Key: "c", Source: Await(Resolved("c"))},
	)

	got, err := collect(t, cc.GetOrComputeStream(ctx, items, NoExpiry))
	require.NoError(t, err)
	want := []Result[string]{
		{Key: "a", Value: "cached-a", Found: true, Cached: true},
		{Key: "b", Value: "b", Found: true},
		{Key: "c", Value: "c", Found: true},
	}
	if df := cmp.Diff(want, got); df != "" {
		t.Errorf("results diff=%s", df)
	}
	require.Zero(t, produced.Load(), "a hit never runs the producer")
	require.Equal(t, []int{2}, s.batches, "misses are flushed as one multi-key write")
	require.Equal(t, 1, s.sets, "only the setup write goes through Set")
	require.Equal(t, []int{2}, hooks.flushes)

	v, ok, err := cc.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", v)
}

func TestStreamFlushesAtBatchSize(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	cc := newStringCache(t, s, func(o *Options[string]) { o.BatchSize = 2 })

	got, err := collect(t, cc.GetOrComputeStream(ctx, Items(map[string]string{
		"k1": "1", "k2": "2", "k3": "3", "k4": "4", "k5": "5",
	}), 0))
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, []int{2, 2, 1}, s.batches)
}

func TestStreamDuplicateKeysHitPendingWrite(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	cc := newStringCache(t, s, nil)

	got, err := collect(t, cc.GetOrComputeStream(ctx, Pairs(
		Item[string]{Key: "k", Source: Value("first")},
		Item[string]{Key: "k", Source: Value("second")},
	), 0))
	require.NoError(t, err)
	require.Equal(t, []Result[string]{
		{Key: "k", Value: "first", Found: true},
		{Key: "k", Value: "first", Found: true, Cached: true},
	}, got)
	require.Equal(t, []int{1}, s.batches)
}

func TestStreamWithTTLWritesEachKey(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	cc := newStringCache(t, s, nil)

	_, err := collect(t, cc.GetOrComputeStream(ctx, Items(map[string]string{"a": "1", "b": "2"}), time.Minute))
	require.NoError(t, err)
	require.Empty(t, s.batches)
	require.Equal(t, 2, s.sets)

	ttl, err := s.TTL(ctx, "a")
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func TestStreamAbsentSourceIsNotWritten(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	cc, err := New(Options[*user]{Store: s})
	require.NoError(t, err)

	got, err := collect(t, cc.GetOrComputeStream(ctx, Pairs(
		Item[*user]{Key: "nil", Source: Value[*user](nil)},
		Item[*user]{Key: "zero"},
	), 0))
	require.NoError(t, err)
	require.Equal(t, []Result[*user]{{Key: "nil"}, {Key: "zero"}}, got)
	require.Zero(t, s.Len())
}

func TestStreamEarlyStopFlushes(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	cc := newStringCache(t, s, nil)

	for r, err := range cc.GetOrComputeStream(ctx, Items(map[string]string{"a": "1", "b": "2", "c": "3"}), 0) {
		require.NoError(t, err)
		require.Equal(t, "a", r.Key)
		break
	}
	require.Equal(t, []int{1}, s.batches)
	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStreamProducerErrorEndsSequence(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	hooks := &recHooks{}
	cc := newStringCache(t, s, func(o *Options[string]) { o.Hooks = hooks })
	boom := errors.New("boom")

	var tail atomic.Bool
	items := Pairs(
		Item[string]{Key: "a", Source: Value("1")},
		Item[string]{Key: "b", Source: Func(func(context.Context) (string, error) { return "", boom })},
		Item[string]{Key: "c", Source: Func(func(context.Context) (string, error) {
			tail.Store(true)
			return "3", nil
		})},
	)

	got, err := collect(t, cc.GetOrComputeStream(ctx, items, 0))
	require.ErrorIs(t, err, boom)
	require.Len(t, got, 1)
	require.False(t, tail.Load(), "items after the failure are not consumed")
	require.Equal(t, []int{1}, s.batches, "buffered writes are flushed before the error surfaces")
	require.Equal(t, []string{"b"}, hooks.failed)
}

func TestStreamContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newCountingStore()
	cc := newStringCache(t, s, nil)

	items := func(yield func(Item[string]) bool) {
		if !yield(Item[string]{Key: "a", Source: Value("1")}) {
			return
		}
		cancel()
		yield(Item[string]{Key: "b", Source: Value("2")})
	}
	got, err := collect(t, cc.GetOrComputeStream(ctx, items, 0))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1)
	require.Equal(t, []int{1}, s.batches)
}

func TestStreamFallsBackWhenSetManyUnsupported(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	s.unsupported = true
	cc := newStringCache(t, s, nil)

	_, err := collect(t, cc.GetOrComputeStream(ctx, Items(map[string]string{"a": "1", "b": "2"}), 0))
	require.NoError(t, err)
	require.Equal(t, 2, s.sets)
	v, ok, err := cc.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v)
}

func TestStreamTouchOnHit(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	cc := newStringCache(t, s, func(o *Options[string]) { o.TouchOnHit = true })
	require.NoError(t, cc.Set(ctx, "a", "1", 0))

	_, err := collect(t, cc.GetOrComputeStream(ctx, Items(map[string]string{"a": "x", "b": "y"}), 0))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, s.touches)
}

func TestStreamInvalidKey(t *testing.T) {
	cc := newStringCache(t, newCountingStore(), nil)
	_, err := collect(t, cc.GetOrComputeStream(context.Background(), Pairs(Item[string]{Key: ""}), 0))
	require.ErrorIs(t, err, store.ErrInvalidKey)
}

func TestSetStream(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	cc := newStringCache(t, s, func(o *Options[string]) { o.BatchSize = 2 })
	require.NoError(t, cc.Set(ctx, "a", "old", 0))

	err := cc.SetStream(ctx, Items(map[string]string{"a": "new", "b": "2", "c": "3"}), 0)
	require.NoError(t, err)
	require.Equal(t, []int{2, 1}, s.batches)

	v, _, err := cc.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "new", v, "SetStream overwrites existing keys")

	boom := errors.New("boom")
	err = cc.SetStream(ctx, Pairs(
		Item[string]{Key: "d", Source: Value("4")},
		Item[string]{Key: "e", Source: Func(func(context.Context) (string, error) { return "", boom })},
	), 0)
	require.ErrorIs(t, err, boom)
	ok, err := cc.Exists(ctx, "d")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFromChannel(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, newCountingStore(), nil)

	ch := make(chan Item[string])
	go func() {
		defer close(ch)
		for _, k := range []string{"x", "y", "z"} {
			ch <- Item[string]{Key: k, Source: Value(k + k)}
		}
	}()

	got, err := collect(t, cc.GetOrComputeStream(ctx, FromChannel(ctx, ch), 0))
	require.NoError(t, err)
	keys := make([]string, 0, len(got))
	for _, r := range got {
		keys = append(keys, r.Key+"="+r.Value)
	}
	require.Equal(t, []string{"x=xx", "y=yy", "z=zz"}, keys)
}

func TestStreamFlushFailureFollowsYieldedMisses(t *testing.T) {
	ctx := context.Background()
	hooks := &recHooks{}
	cc := newStringCache(t, memstore.New(memstore.WithMaxEntries(1)), func(o *Options[string]) {
		o.Hooks = hooks
		o.BatchSize = 10
	})

	got, err := collect(t, cc.GetOrComputeStream(ctx, Items(map[string]string{"a": "1", "b": "2"}), NoExpiry))
	require.Len(t, got, 2)
	require.True(t, got[0].Found)
	require.True(t, got[1].Found)
	require.ErrorIs(t, err, store.ErrCapacityExceeded)

	_, ok, err := cc.Get(ctx, "b")
	require.NoError(t, err)
	require.False(t, ok, "b was yielded but never persisted")
	require.Equal(t, []int{2}, hooks.flushes)
}
