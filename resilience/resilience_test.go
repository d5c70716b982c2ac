package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache/resilience"
	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/memstore"
	"github.com/unkn0wn-root/asidecache/store/nostore"
	"github.com/unkn0wn-root/asidecache/store/storetest"
)

// flaky fails the first n calls of each op with err.
type flaky struct {
	store.Store
	mu    sync.Mutex
	fails map[string]int
	calls map[string]int
	err   error
}

func newFlaky(err error, fails map[string]int) *flaky {
	return &flaky{Store: memstore.New(), fails: fails, calls: map[string]int{}, err: err}
}

func (f *flaky) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.calls[op] <= f.fails[op] {
		return fmt.Errorf("%s: %w", op, f.err)
	}
	return nil
}

func (f *flaky) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *flaky) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.hit("Get"); err != nil {
		return nil, false, err
	}
	return f.Store.Get(ctx, key)
}

func (f *flaky) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if err := f.hit("Set"); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, v, ttl)
}

type retryEvent struct {
	op      string
	attempt int
	wait    time.Duration
}

type recordingHooks struct {
	mu     sync.Mutex
	events []retryEvent
}

func (h *recordingHooks) Hit(string)                   {}
func (h *recordingHooks) Miss(string)                  {}
func (h *recordingHooks) ProducerFailed(string, error) {}
func (h *recordingHooks) DecodeFailed(string, error)   {}
func (h *recordingHooks) WriteRejected(string, error)  {}
func (h *recordingHooks) BatchFlushed(int, error)      {}
func (h *recordingHooks) RetryScheduled(op string, attempt int, wait time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, retryEvent{op, attempt, wait})
}

func fast(n int) *resilience.Policy {
	return &resilience.Policy{MaxAttempts: n, Backoff: func(int) time.Duration { return time.Millisecond }}
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store {
		return resilience.Wrap(memstore.New(), resilience.Policies{Default: fast(3)})
	}, storetest.Options{})
}

func TestRetriesTransientUntilSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(syscall.ECONNRESET, map[string]int{"Set": 2})
	hooks := &recordingHooks{}
	s := resilience.Wrap(f, resilience.Policies{Default: resilience.Exponential(3)}, resilience.WithHooks(hooks))

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.Equal(t, 3, f.count("Set"))
	require.Equal(t, []retryEvent{
		{"Set", 1, 2 * time.Millisecond},
		{"Set", 2, 4 * time.Millisecond},
	}, hooks.events)
}

func TestExhaustedReturnsFinalError(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(io.EOF, map[string]int{"Get": 10})
	s := resilience.Wrap(f, resilience.Policies{Get: fast(4)})

	_, _, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "Get: EOF", err.Error(), "final error is returned unwrapped")
	require.Equal(t, 4, f.count("Get"))
}

func TestNonTransientIsNotRetried(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	f := newFlaky(boom, map[string]int{"Set": 1})
	s := resilience.Wrap(f, resilience.Policies{Default: fast(5)})

	require.ErrorIs(t, s.Set(ctx, "k", []byte("v"), 0), boom)
	require.Equal(t, 1, f.count("Set"))
}

func TestPolicyResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("specific overrides default", func(t *testing.T) {
		f := newFlaky(resilience.ErrTransient, map[string]int{"Get": 10, "Set": 10})
		s := resilience.Wrap(f, resilience.Policies{Default: fast(2), Set: fast(4)})
		_, _, _ = s.Get(ctx, "k")
		_ = s.Set(ctx, "k", nil, 0)
		require.Equal(t, 2, f.count("Get"))
		require.Equal(t, 4, f.count("Set"))
	})

	t.Run("no policy means no retry", func(t *testing.T) {
		f := newFlaky(resilience.ErrTransient, map[string]int{"Get": 10})
		s := resilience.Wrap(f, resilience.Policies{})
		_, _, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, resilience.ErrTransient)
		require.Equal(t, 1, f.count("Get"))
	})
}

func TestCustomClassifier(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	f := newFlaky(boom, map[string]int{"Set": 1})
	s := resilience.Wrap(f, resilience.Policies{Default: fast(2)},
		resilience.WithClassifier(func(err error) bool { return errors.Is(err, boom) }))

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.Equal(t, 2, f.count("Set"))
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFlaky(resilience.ErrTransient, map[string]int{"Set": 100})
	slow := &resilience.Policy{MaxAttempts: 100, Backoff: func(int) time.Duration { return time.Hour }}
	s := resilience.Wrap(f, resilience.Policies{Default: slow})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	require.ErrorIs(t, s.Set(ctx, "k", []byte("v"), 0), context.Canceled)
	require.Equal(t, 1, f.count("Set"))
}

func TestUnsupportedCapabilities(t *testing.T) {
	ctx := context.Background()
	s := resilience.Wrap(nostore.New(), resilience.Policies{})
	require.ErrorIs(t, s.Touch(ctx, "k"), errors.ErrUnsupported)
	_, err := s.Sweep(ctx)
	require.ErrorIs(t, err, errors.ErrUnsupported)
	require.NoError(t, s.SetMany(ctx, nil))
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("x"), false},
		{context.Canceled, false},
		{fmt.Errorf("op: %w", context.DeadlineExceeded), false},
		{store.ErrInvalidKey, false},
		{io.EOF, true},
		{io.ErrUnexpectedEOF, true},
		{syscall.ECONNREFUSED, true},
		{fmt.Errorf("dial: %w", syscall.ECONNRESET), true},
		{syscall.EPIPE, true},
		{errors.Join(resilience.ErrTransient, errors.New("x")), true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, resilience.IsTransient(tc.err), "%v", tc.err)
	}
}
