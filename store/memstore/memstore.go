// Package memstore is an in-process store.Store backed by a map.
//
// Expired entries are dropped lazily: a read that finds one reports a miss and
// then sweeps the whole table. An optional background sweep removes entries
// nobody reads. Capacity is a hard cap without eviction: inserting a new key
// into a full table fails with store.ErrCapacityExceeded.
package memstore

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/unkn0wn-root/asidecache/expiration"
	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/store"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = never
}

type Store struct {
	mu     sync.RWMutex
	table  map[string]*entry
	opts   *options
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.MultiSetter = (*Store)(nil)
	_ store.Toucher     = (*Store)(nil)
	_ store.Sweeper     = (*Store)(nil)
)

// New creates an empty store.
//
//	s := memstore.New(
//	    memstore.WithMaxEntries(10_000),
//	    memstore.WithSweepInterval(time.Minute),
//	)
//	defer s.Close(ctx)
func New(opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	s := &Store{
		table: make(map[string]*entry),
		opts:  o,
		done:  make(chan struct{}),
	}
	if o.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweeper()
	}
	return s
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return expiration.Expired(s.opts.policy, now, e.expiresAt)
}

// lookup copies the live entry for key under the read lock.
// stale reports an expired entry was seen.
func (s *Store) lookup(key string) (e entry, found bool, now time.Time, stale bool) {
	now = s.opts.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.table[key]
	if !ok {
		return entry{}, false, now, false
	}
	if s.expired(p, now) {
		return entry{}, false, now, true
	}
	return *p, true, now, false
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !util.ValidKey(key) {
		return nil, false, store.ErrInvalidKey
	}
	e, ok, _, stale := s.lookup(key)
	if stale {
		s.sweep()
	}
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if !util.ValidKey(key) {
		return false, store.ErrInvalidKey
	}
	_, ok, _, stale := s.lookup(key)
	if stale {
		s.sweep()
	}
	return ok, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !util.ValidKey(key) {
		return 0, store.ErrInvalidKey
	}
	e, ok, now, stale := s.lookup(key)
	if stale {
		s.sweep()
	}
	if !ok {
		return store.TTLMissing, nil
	}
	d, ok := expiration.Remaining(now, e.expiresAt)
	if !ok {
		return store.TTLUnlimited, nil
	}
	return d, nil
}

// Set stores value. Values are kept by reference; callers must not mutate them.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	if value == nil {
		value = []byte{}
	}
	deadline := expiration.Deadline(s.opts.clock.Now(), ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return s.putLocked(key, value, deadline)
}

func (s *Store) putLocked(key string, value []byte, deadline time.Time) error {
	// published entries are immutable; readers copy them under the read lock
	if _, ok := s.table[key]; ok {
		s.table[key] = &entry{value: value, expiresAt: deadline}
		return nil
	}
	if s.opts.maxEntries > 0 && len(s.table) >= s.opts.maxEntries {
		return store.ErrCapacityExceeded
	}
	s.table[key] = &entry{value: value, expiresAt: deadline}
	return nil
}

// SetMany writes entries without expiry under one lock. On capacity failure
// the entries before the failing one stay written.
func (s *Store) SetMany(ctx context.Context, entries []store.Entry) error {
	for _, e := range entries {
		if !util.ValidKey(e.Key) {
			return store.ErrInvalidKey
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	for _, e := range entries {
		v := e.Value
		if v == nil {
			v = []byte{}
		}
		if err := s.putLocked(e.Key, v, time.Time{}); err != nil {
			return err
		}
	}
	return nil
}

// Touch is a no-op for live keys: in-process entries carry no access marker.
func (s *Store) Touch(ctx context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.table, key)
	return nil
}

func (s *Store) RemoveByPattern(ctx context.Context, pattern string) error {
	m, err := store.Compile(pattern)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.table {
		if m.Match(k) {
			delete(s.table, k)
		}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.table)
	return nil
}

// ScanKeys yields a snapshot of live matching keys taken under the read lock.
func (s *Store) ScanKeys(ctx context.Context, pattern string) iter.Seq2[string, error] {
	m, err := store.Compile(pattern)
	if err != nil {
		return store.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		now := s.opts.clock.Now()
		s.mu.RLock()
		keys := make([]string, 0, len(s.table))
		for k, e := range s.table {
			if !s.expired(e, now) && m.Match(k) {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	return s.sweep(), nil
}

func (s *Store) sweep() int {
	now := s.opts.clock.Now()

	s.mu.Lock()
	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	removed := 0
	for _, k := range keys {
		if e, ok := s.table[k]; ok && s.expired(e, now) {
			delete(s.table, k)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 && s.opts.onSweep != nil {
		s.opts.onSweep(removed)
	}
	return removed
}

// Len returns the number of entries held, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// Close stops the background sweeper. Entries stay readable.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Store) sweeper() {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.sweep()
		}
	}
}
