// Package resilience wraps a store.Store so transient backend failures are
// retried with backoff (sethvargo/go-retry).
//
// Only errors the classifier accepts are retried; anything else, and the
// final error once attempts run out, is returned unchanged.
package resilience

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/unkn0wn-root/asidecache"
	"github.com/unkn0wn-root/asidecache/store"
)

// Option configures a Store.
type Option func(*Store)

func WithLogger(l asidecache.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithHooks(h asidecache.Hooks) Option {
	return func(s *Store) {
		if h != nil {
			s.hooks = h
		}
	}
}

// WithClassifier replaces IsTransient.
func WithClassifier(fn func(error) bool) Option {
	return func(s *Store) {
		if fn != nil {
			s.transient = fn
		}
	}
}

// Store is a store.Store decorator. It implements every optional capability
// and returns errors.ErrUnsupported when the wrapped store lacks one.
type Store struct {
	inner     store.Store
	read      *Policy
	write     *Policy
	transient func(error) bool
	log       asidecache.Logger
	hooks     asidecache.Hooks
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.MultiSetter = (*Store)(nil)
	_ store.Toucher     = (*Store)(nil)
	_ store.Sweeper     = (*Store)(nil)
)

// Wrap decorates s. Policies are resolved once here.
//
//	s := resilience.Wrap(redis, resilience.Policies{
//	    Default: resilience.Exponential(3),
//	    Set:     resilience.Exponential(5),
//	}, resilience.WithLogger(log))
func Wrap(s store.Store, p Policies, opts ...Option) *Store {
	w := &Store{
		inner:     s,
		read:      p.read(),
		write:     p.write(),
		transient: IsTransient,
		log:       asidecache.NopLogger{},
		hooks:     asidecache.NopHooks{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() store.Store { return s.inner }

func (s *Store) do(ctx context.Context, op string, p *Policy, fn func(context.Context) error) error {
	if p == nil || p.MaxAttempts <= 1 {
		return fn(ctx)
	}

	var (
		attempt int
		last    error
	)
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		wait := p.wait(attempt)
		s.log.Warn("store call failed; retrying", asidecache.Fields{
			"op": op, "attempt": attempt, "wait": wait, "err": last,
		})
		s.hooks.RetryScheduled(op, attempt, wait, last)
		return wait, false
	})

	return retry.Do(ctx, retry.WithMaxRetries(uint64(p.MaxAttempts-1), next), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && s.transient(err) {
			last = err
			return retry.RetryableError(err)
		}
		return err
	})
}

func doValue[T any](ctx context.Context, s *Store, op string, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.do(ctx, op, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type hit struct {
	v  []byte
	ok bool
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	h, err := doValue(ctx, s, "Get", s.read, func(ctx context.Context) (hit, error) {
		v, ok, err := s.inner.Get(ctx, key)
		return hit{v, ok}, err
	})
	return h.v, h.ok, err
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	return doValue(ctx, s, "Exists", s.read, func(ctx context.Context) (bool, error) {
		return s.inner.Exists(ctx, key)
	})
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return doValue(ctx, s, "TTL", s.read, func(ctx context.Context) (time.Duration, error) {
		return s.inner.TTL(ctx, key)
	})
}

// ScanKeys collects the full scan under the read policy before yielding,
// so a retried scan never yields a key twice.
func (s *Store) ScanKeys(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		keys, err := doValue(ctx, s, "ScanKeys", s.read, func(ctx context.Context) ([]string, error) {
			var keys []string
			for k, err := range s.inner.ScanKeys(ctx, pattern) {
				if err != nil {
					return nil, err
				}
				keys = append(keys, k)
			}
			return keys, nil
		})
		if err != nil {
			yield("", err)
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *Store) Touch(ctx context.Context, key string) error {
	t, ok := s.inner.(store.Toucher)
	if !ok {
		return errors.ErrUnsupported
	}
	return s.do(ctx, "Touch", s.read, func(ctx context.Context) error {
		return t.Touch(ctx, key)
	})
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, "Set", s.write, func(ctx context.Context) error {
		return s.inner.Set(ctx, key, value, ttl)
	})
}

func (s *Store) SetMany(ctx context.Context, entries []store.Entry) error {
	ms, ok := s.inner.(store.MultiSetter)
	if !ok {
		return errors.ErrUnsupported
	}
	return s.do(ctx, "SetMany", s.write, func(ctx context.Context) error {
		return ms.SetMany(ctx, entries)
	})
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.do(ctx, "Remove", s.write, func(ctx context.Context) error {
		return s.inner.Remove(ctx, key)
	})
}

func (s *Store) RemoveByPattern(ctx context.Context, pattern string) error {
	return s.do(ctx, "RemoveByPattern", s.write, func(ctx context.Context) error {
		return s.inner.RemoveByPattern(ctx, pattern)
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.do(ctx, "Clear", s.write, s.inner.Clear)
}

func (s *Store) Sweep(ctx context.Context) (int, error) {
	sw, ok := s.inner.(store.Sweeper)
	if !ok {
		return 0, errors.ErrUnsupported
	}
	return doValue(ctx, s, "Sweep", s.write, sw.Sweep)
}

// Close is not retried.
func (s *Store) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}
