// Package redisstore is a store.Store on redis/go-redis/v9.
//
// Values are stored as plain strings; expiry is delegated to Redis (PX).
// Keys are optionally namespaced as "<prefix>:<key>". Pattern scans use
// SCAN MATCH with the translated pattern and re-filter client side, so the
// matched set is the same as for in-process stores.
package redisstore

import (
	"context"
	"errors"
	"iter"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/asidecache/internal/pattern"
	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/store"
)

const defaultScanCount = 100

type Config struct {
	Client      goredis.UniversalClient
	Prefix      string // optional namespace; empty => Clear uses FLUSHDB
	ScanCount   int64  // SCAN COUNT hint; 0 => 100
	CloseClient bool   // set true only if this store exclusively owns the client
}

type Store struct {
	rdb         goredis.UniversalClient
	prefix      string
	scanCount   int64
	closeClient bool
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.MultiSetter = (*Store)(nil)
	_ store.Toucher     = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	sc := cfg.ScanCount
	if sc <= 0 {
		sc = defaultScanCount
	}
	return &Store{
		rdb:         cfg.Client,
		prefix:      cfg.Prefix,
		scanCount:   sc,
		closeClient: cfg.CloseClient,
	}, nil
}

func (s *Store) key(k string) string { return util.JoinKey(s.prefix, k) }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !util.ValidKey(key) {
		return nil, false, store.ErrInvalidKey
	}
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	if ttl < 0 {
		ttl = 0 // negative means KEEPTTL to go-redis; here it means no expiry
	}
	return s.rdb.Set(ctx, s.key(key), value, ttl).Err()
}

// SetMany writes entries with a single MSET. Existing expiries are cleared.
func (s *Store) SetMany(ctx context.Context, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	pairs := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		if !util.ValidKey(e.Key) {
			return store.ErrInvalidKey
		}
		pairs = append(pairs, s.key(e.Key), e.Value)
	}
	return s.rdb.MSet(ctx, pairs...).Err()
}

// Touch updates the key's last access time. Absent keys are ignored.
func (s *Store) Touch(ctx context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	return s.rdb.Touch(ctx, s.key(key)).Err()
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if !util.ValidKey(key) {
		return false, store.ErrInvalidKey
	}
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !util.ValidKey(key) {
		return 0, store.ErrInvalidKey
	}
	d, err := s.rdb.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	switch d {
	case -2:
		return store.TTLMissing, nil
	case -1:
		return store.TTLUnlimited, nil
	}
	return d, nil
}

func (s *Store) RemoveByPattern(ctx context.Context, pattern string) error {
	return store.RemoveMatching(ctx, s, pattern)
}

// Clear flushes the selected database when no prefix is set, otherwise
// deletes every key under the prefix.
func (s *Store) Clear(ctx context.Context) error {
	if s.prefix == "" {
		return s.rdb.FlushDB(ctx).Err()
	}
	return s.scan(ctx, pattern.QuoteNative(s.prefix)+":*", func(keys []string) error {
		return s.rdb.Del(ctx, keys...).Err()
	})
}

func (s *Store) ScanKeys(ctx context.Context, p string) iter.Seq2[string, error] {
	m, err := store.Compile(p)
	if err != nil {
		return store.ErrSeq(err)
	}
	native := m.Native()
	if s.prefix != "" {
		native = pattern.QuoteNative(s.prefix) + ":" + native
	}
	return func(yield func(string, error) bool) {
		seen := make(map[string]struct{})
		stop := errors.New("stop")
		err := s.scan(ctx, native, func(keys []string) error {
			for _, raw := range keys {
				k, ok := util.StripKey(s.prefix, raw)
				if !ok || !m.Match(k) {
					continue
				}
				if _, dup := seen[k]; dup {
					continue // SCAN may return a key more than once
				}
				seen[k] = struct{}{}
				if !yield(k, nil) {
					return stop
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield("", err)
		}
	}
}

// scan walks the keyspace with SCAN MATCH, handing each non-empty page to fn.
func (s *Store) scan(ctx context.Context, match string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, s.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
