// Package shardstore is a sharded in-process store.Store on allegro/bigcache.
//
// bigcache has no per-entry TTL, so every value is framed with its deadline
// (internal/wire) and expiry is checked on read. BigCache's own LifeWindow
// only bounds how long an entry may live regardless of its ttl.
package shardstore

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/asidecache/expiration"
	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/internal/wire"
	"github.com/unkn0wn-root/asidecache/store"
)

const (
	defaultLifeWindow         = 7 * 24 * time.Hour
	defaultMaxEntriesInWindow = 10_000
	defaultMaxEntrySize       = 256
)

type Config struct {
	Shards             int           // power of two; 0 => bigcache default (1024)
	LifeWindow         time.Duration // hard upper bound on entry age; 0 => 7d
	CleanWindow        time.Duration // bigcache cleanup of entries past LifeWindow; 0 => off
	MaxEntriesInWindow int           // initial sizing hint; 0 => 10k
	MaxEntrySize       int           // initial sizing hint in bytes; 0 => 256
	HardMaxCacheSizeMB int           // ~ memory limit; 0 = unlimited. Oldest entries are evicted past it.
	Clock              expiration.Clock
}

type Store struct {
	c         *bc.BigCache
	clock     expiration.Clock
	closeOnce sync.Once
	closeErr  error
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.MultiSetter = (*Store)(nil)
	_ store.Sweeper     = (*Store)(nil)
)

func New(ctx context.Context, cfg Config) (*Store, error) {
	lw := cfg.LifeWindow
	if lw <= 0 {
		lw = defaultLifeWindow
	}
	conf := bc.DefaultConfig(lw)
	conf.CleanWindow = cfg.CleanWindow
	conf.Verbose = false
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	conf.MaxEntriesInWindow = defaultMaxEntriesInWindow
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	conf.MaxEntrySize = defaultMaxEntrySize
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = expiration.SystemClock
	}
	return &Store{c: c, clock: clock}, nil
}

// read returns the live frame payload and its deadline. Expired and corrupt
// frames read as absent and are left for Sweep.
func (s *Store) read(key string) (payload []byte, deadline time.Time, now time.Time, ok bool, err error) {
	raw, err := s.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, time.Time{}, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, time.Time{}, false, err
	}
	deadline, payload, err = wire.Decode(raw)
	if err != nil {
		return nil, time.Time{}, time.Time{}, false, nil
	}
	now = s.clock.Now()
	if expiration.Expired(expiration.GeneralPolicy{}, now, deadline) {
		return nil, time.Time{}, now, false, nil
	}
	return payload, deadline, now, true, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !util.ValidKey(key) {
		return nil, false, store.ErrInvalidKey
	}
	p, _, _, ok, err := s.read(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return p, true, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	if !util.ValidKey(key) {
		return false, store.ErrInvalidKey
	}
	_, _, _, ok, err := s.read(key)
	return ok, err
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	if !util.ValidKey(key) {
		return 0, store.ErrInvalidKey
	}
	_, deadline, now, ok, err := s.read(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return store.TTLMissing, nil
	}
	if d, finite := expiration.Remaining(now, deadline); finite {
		return d, nil
	}
	return store.TTLUnlimited, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	return s.c.Set(key, wire.Encode(expiration.Deadline(s.clock.Now(), ttl), value))
}

func (s *Store) SetMany(ctx context.Context, entries []store.Entry) error {
	return store.SetEach(ctx, s, entries)
}

func (s *Store) Remove(_ context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	err := s.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (s *Store) RemoveByPattern(ctx context.Context, pattern string) error {
	return store.RemoveMatching(ctx, s, pattern)
}

func (s *Store) Clear(context.Context) error {
	return s.c.Reset()
}

// ScanKeys walks every shard. Keys written during the walk may be missed.
func (s *Store) ScanKeys(ctx context.Context, pattern string) iter.Seq2[string, error] {
	m, err := store.Compile(pattern)
	if err != nil {
		return store.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		now := s.clock.Now()
		for key, deadline := range s.entries() {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if expiration.Expired(expiration.GeneralPolicy{}, now, deadline) || !m.Match(key) {
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// Sweep deletes expired and corrupt entries. Each candidate is read again
// right before its Delete; bigcache has no compare-and-delete, so a Set landing
// between that read and the Delete can still be lost.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var dead []string
	for key, deadline := range s.entries() {
		if expiration.Expired(expiration.GeneralPolicy{}, now, deadline) {
			dead = append(dead, key)
		}
	}
	removed := 0
	for _, k := range dead {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !s.dead(k, now) {
			continue
		}
		if err := s.c.Delete(k); err == nil {
			removed++
		}
	}
	return removed, nil
}

// dead reports whether key currently holds an expired or corrupt frame.
func (s *Store) dead(key string, now time.Time) bool {
	raw, err := s.c.Get(key)
	if err != nil {
		return false
	}
	deadline, err := wire.Expiry(raw)
	if err != nil {
		return true
	}
	return expiration.Expired(expiration.GeneralPolicy{}, now, deadline)
}

// entries yields key and deadline of every framed entry. Corrupt frames are
// reported with a deadline in the distant past so callers treat them as expired.
func (s *Store) entries() iter.Seq2[string, time.Time] {
	return func(yield func(string, time.Time) bool) {
		it := s.c.Iterator()
		for it.SetNext() {
			info, err := it.Value()
			if err != nil {
				continue
			}
			deadline, err := wire.Expiry(info.Value())
			if err != nil {
				deadline = time.Unix(0, 1)
			}
			if !yield(info.Key(), deadline) {
				return
			}
		}
	}
}

// Len returns the number of stored frames, expired ones included.
func (s *Store) Len() int { return s.c.Len() }

func (s *Store) Close(context.Context) error {
	s.closeOnce.Do(func() { s.closeErr = s.c.Close() })
	return s.closeErr
}
