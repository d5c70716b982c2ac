// Package storetest provides conformance tests every store.Store implementation runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/asidecache/store"
)

// Options tune the suite for backends with coarse clocks.
type Options struct {
	// ShortTTL is the lifetime used by expiry tests. 0 => 50ms.
	ShortTTL time.Duration
	// SkipExpiry disables tests that sleep past ShortTTL.
	SkipExpiry bool
}

// Run executes the suite. newStore must return an empty store; the suite
// closes it at the end of every subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store, opts Options) {
	t.Helper()
	if opts.ShortTTL <= 0 {
		opts.ShortTTL = 50 * time.Millisecond
	}

	with := func(name string, fn func(t *testing.T, ctx context.Context, s store.Store)) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			fn(t, t.Context(), s)
		})
	}

	with("SetAndGet", func(t *testing.T, ctx context.Context, s store.Store) {
		want := map[string][]byte{
			"a":      []byte("1"),
			"b":      []byte("two"),
			"user:1": {0, 1, 2, 255},
		}
		for k, v := range want {
			require.NoError(t, s.Set(ctx, k, v, time.Hour))
		}
		got := make(map[string][]byte, len(want))
		for k := range want {
			v, ok, err := s.Get(ctx, k)
			require.NoError(t, err)
			require.True(t, ok, "key %q", k)
			got[k] = v
		}
		if df := cmp.Diff(want, got); df != "" {
			t.Errorf("values diff=%s", df)
		}
	})

	with("Miss", func(t *testing.T, ctx context.Context, s store.Store) {
		v, ok, err := s.Get(ctx, "absent")
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, v)
	})

	with("Overwrite", func(t *testing.T, ctx context.Context, s store.Store) {
		require.NoError(t, s.Set(ctx, "k", []byte("v1"), 0))
		require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Hour))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v2", string(v))

		ttl, err := s.TTL(ctx, "k")
		require.NoError(t, err)
		require.Greater(t, ttl, time.Duration(0))
	})

	with("EmptyValue", func(t *testing.T, ctx context.Context, s store.Store) {
		require.NoError(t, s.Set(ctx, "empty", []byte{}, 0))
		v, ok, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		require.True(t, ok)
		require.Empty(t, v)
	})

	with("InvalidKey", func(t *testing.T, ctx context.Context, s store.Store) {
		require.ErrorIs(t, s.Set(ctx, "", []byte("x"), 0), store.ErrInvalidKey)
		_, _, err := s.Get(ctx, "")
		require.ErrorIs(t, err, store.ErrInvalidKey)
		_, err = s.Exists(ctx, "")
		require.ErrorIs(t, err, store.ErrInvalidKey)
		_, err = s.TTL(ctx, "")
		require.ErrorIs(t, err, store.ErrInvalidKey)
		require.ErrorIs(t, s.Remove(ctx, ""), store.ErrInvalidKey)
	})

	with("Remove", func(t *testing.T, ctx context.Context, s store.Store) {
		require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, s.Remove(ctx, "k"))
		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, s.Remove(ctx, "k"), "removing an absent key is not an error")
	})

	with("Exists", func(t *testing.T, ctx context.Context, s store.Store) {
		ok, err := s.Exists(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
		ok, err = s.Exists(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
	})

	with("TTL", func(t *testing.T, ctx context.Context, s store.Store) {
		ttl, err := s.TTL(ctx, "absent")
		require.NoError(t, err)
		require.Equal(t, store.TTLMissing, ttl)

		require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))
		ttl, err = s.TTL(ctx, "forever")
		require.NoError(t, err)
		require.Equal(t, store.TTLUnlimited, ttl)

		require.NoError(t, s.Set(ctx, "hour", []byte("v"), time.Hour))
		ttl, err = s.TTL(ctx, "hour")
		require.NoError(t, err)
		require.Greater(t, ttl, 59*time.Minute)
		require.LessOrEqual(t, ttl, time.Hour)
	})

	if !opts.SkipExpiry {
		with("Expiry", func(t *testing.T, ctx context.Context, s store.Store) {
			require.NoError(t, s.Set(ctx, "short", []byte("v"), opts.ShortTTL))
			require.NoError(t, s.Set(ctx, "long", []byte("v"), time.Hour))
			time.Sleep(3 * opts.ShortTTL)

			_, ok, err := s.Get(ctx, "short")
			require.NoError(t, err)
			require.False(t, ok, "expired entry must never be a hit")

			ok, err = s.Exists(ctx, "short")
			require.NoError(t, err)
			require.False(t, ok)

			ttl, err := s.TTL(ctx, "short")
			require.NoError(t, err)
			require.Equal(t, store.TTLMissing, ttl)

			keys := collect(t, ctx, s, "*")
			require.Equal(t, []string{"long"}, keys)
		})
	}

	with("ScanKeys", func(t *testing.T, ctx context.Context, s store.Store) {
		for _, k := range []string{"user:1", "user:2", "user:10", "user:é", "user:日", "order:1", "a{b}", "x?y"} {
			require.NoError(t, s.Set(ctx, k, []byte("v"), 0))
		}
		// ? and classes match one character, not one byte
		cases := []struct {
			pattern string
			want    []string
		}{
			{"*", []string{"a{b}", "order:1", "user:1", "user:10", "user:2", "user:é", "user:日", "x?y"}},
			{"user:*", []string{"user:1", "user:10", "user:2", "user:é", "user:日"}},
			{"user:?", []string{"user:1", "user:2", "user:é", "user:日"}},
			{"user:??", []string{"user:10"}},
			{"user:[12]", []string{"user:1", "user:2"}},
			{"user:[é日]", []string{"user:é", "user:日"}},
			{"user:[^1]", []string{"user:2", "user:é", "user:日"}},
			{"user:[!1]", []string{"user:2", "user:é", "user:日"}},
			{"a{b}", []string{"a{b}"}},
			{`x\?y`, []string{"x?y"}},
			{"nothing*", nil},
		}
		for _, tc := range cases {
			got := collect(t, ctx, s, tc.pattern)
			if df := cmp.Diff(tc.want, got); df != "" {
				t.Errorf("pattern %q diff=%s", tc.pattern, df)
			}
		}
	})

	with("InvalidPattern", func(t *testing.T, ctx context.Context, s store.Store) {
		for _, p := range []string{"", "[abc", `abc\`} {
			var got error
			for _, err := range s.ScanKeys(ctx, p) {
				if err != nil {
					got = err
					break
				}
			}
			require.ErrorIs(t, got, store.ErrInvalidPattern, "pattern %q", p)
			require.ErrorIs(t, s.RemoveByPattern(ctx, p), store.ErrInvalidPattern, "pattern %q", p)
		}
	})

	with("RemoveByPattern", func(t *testing.T, ctx context.Context, s store.Store) {
		for _, k := range []string{"user:1", "user:2", "order:1"} {
			require.NoError(t, s.Set(ctx, k, []byte("v"), 0))
		}
		require.NoError(t, s.RemoveByPattern(ctx, "user:*"))
		require.Equal(t, []string{"order:1"}, collect(t, ctx, s, "*"))
		require.NoError(t, s.RemoveByPattern(ctx, "none:*"))
	})

	with("Clear", func(t *testing.T, ctx context.Context, s store.Store) {
		for i := range 5 {
			require.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0))
		}
		require.NoError(t, s.Clear(ctx))
		require.Empty(t, collect(t, ctx, s, "*"))
		require.NoError(t, s.Set(ctx, "after", []byte("v"), 0), "store stays usable after Clear")
	})

	with("SetMany", func(t *testing.T, ctx context.Context, s store.Store) {
		ms, ok := s.(store.MultiSetter)
		if !ok {
			t.Skip("store does not implement MultiSetter")
		}
		entries := []store.Entry{
			{Key: "m1", Value: []byte("1")},
			{Key: "m2", Value: []byte("2")},
			{Key: "m3", Value: []byte("3")},
		}
		err := ms.SetMany(ctx, entries)
		if errors.Is(err, errors.ErrUnsupported) {
			t.Skip("SetMany unsupported by the wrapped store")
		}
		require.NoError(t, err)
		for _, e := range entries {
			v, ok, err := s.Get(ctx, e.Key)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, e.Value, v)

			ttl, err := s.TTL(ctx, e.Key)
			require.NoError(t, err)
			require.Equal(t, store.TTLUnlimited, ttl)
		}
		require.NoError(t, ms.SetMany(ctx, nil))
	})

	with("Touch", func(t *testing.T, ctx context.Context, s store.Store) {
		tc, ok := s.(store.Toucher)
		if !ok {
			t.Skip("store does not implement Toucher")
		}
		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
		err := tc.Touch(ctx, "k")
		if errors.Is(err, errors.ErrUnsupported) {
			t.Skip("Touch unsupported by the wrapped store")
		}
		require.NoError(t, err)
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", string(v))
		require.NoError(t, tc.Touch(ctx, "absent"))
	})

	if !opts.SkipExpiry {
		with("Sweep", func(t *testing.T, ctx context.Context, s store.Store) {
			sw, ok := s.(store.Sweeper)
			if !ok {
				t.Skip("store does not implement Sweeper")
			}
			require.NoError(t, s.Set(ctx, "short", []byte("v"), opts.ShortTTL))
			require.NoError(t, s.Set(ctx, "long", []byte("v"), 0))
			time.Sleep(3 * opts.ShortTTL)
			_, err := sw.Sweep(ctx)
			if errors.Is(err, errors.ErrUnsupported) {
				t.Skip("Sweep unsupported by the wrapped store")
			}
			require.NoError(t, err)
			require.Equal(t, []string{"long"}, collect(t, ctx, s, "*"))
		})
	}

	with("Concurrency", func(t *testing.T, ctx context.Context, s store.Store) {
		var eg errgroup.Group
		for w := range 8 {
			eg.Go(func() error {
				for i := range 50 {
					k := fmt.Sprintf("w%d:%d", w, i)
					if err := s.Set(ctx, k, []byte(k), 0); err != nil {
						return err
					}
					v, ok, err := s.Get(ctx, k)
					if err != nil {
						return err
					}
					if !ok || string(v) != k {
						return fmt.Errorf("key %q: got %q ok=%v", k, v, ok)
					}
				}
				return nil
			})
		}
		require.NoError(t, eg.Wait())
		require.Len(t, collect(t, ctx, s, "w*"), 8*50)
	})

	with("SameKeyConcurrency", func(t *testing.T, ctx context.Context, s store.Store) {
		require.NoError(t, s.Set(ctx, "k", []byte("a"), time.Hour))

		stop := make(chan struct{})
		var readers errgroup.Group
		for range 4 {
			readers.Go(func() error {
				for {
					select {
					case <-stop:
						return nil
					default:
					}
					v, ok, err := s.Get(ctx, "k")
					if err != nil {
						return err
					}
					if !ok || (string(v) != "a" && string(v) != "bb") {
						return fmt.Errorf("get: %q ok=%v", v, ok)
					}
					ttl, err := s.TTL(ctx, "k")
					if err != nil {
						return err
					}
					if ttl != store.TTLUnlimited && (ttl <= 0 || ttl > time.Hour) {
						return fmt.Errorf("ttl: %v", ttl)
					}
					if ok, err := s.Exists(ctx, "k"); err != nil || !ok {
						return fmt.Errorf("exists: %v %v", ok, err)
					}
				}
			})
		}

		var writers errgroup.Group
		for w := range 4 {
			writers.Go(func() error {
				for i := range 200 {
					var err error
					if (w+i)%2 == 0 {
						err = s.Set(ctx, "k", []byte("a"), time.Hour)
					} else {
						err = s.Set(ctx, "k", []byte("bb"), 0)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		}
		werr := writers.Wait()
		close(stop)
		require.NoError(t, werr)
		require.NoError(t, readers.Wait())
	})

	with("CloseTwice", func(t *testing.T, ctx context.Context, s store.Store) {
		require.NoError(t, s.Close(ctx))
		require.NoError(t, s.Close(ctx))
	})
}

func collect(t *testing.T, ctx context.Context, s store.Store, pattern string) []string {
	t.Helper()
	var keys []string
	for k, err := range s.ScanKeys(ctx, pattern) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
