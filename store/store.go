// Package store defines the byte-level storage abstraction used by asidecache.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. Expiry is owned by the store;
// a ttl <= 0 means the entry never expires.
//
// Keys are non-empty strings. Patterns follow the glob syntax documented in
// Compile and select the same key set on every implementation.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/unkn0wn-root/asidecache/internal/pattern"
)

var (
	ErrInvalidKey       = errors.New("store: invalid key")
	ErrInvalidPattern   = errors.New("store: invalid pattern")
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
	ErrClosed           = errors.New("store: closed")
)

// TTL sentinels returned by Store.TTL. They match the Redis PTTL replies.
const (
	// TTLMissing: the key is absent or expired.
	TTLMissing time.Duration = -2
	// TTLUnlimited: the key exists without expiry.
	TTLUnlimited time.Duration = -1
)

// Store is a byte store with per-entry expiry.
// Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// RemoveByPattern deletes every key matching pattern. Not atomic.
	RemoveByPattern(ctx context.Context, pattern string) error

	// Clear deletes every entry owned by the store.
	Clear(ctx context.Context) error

	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime, TTLUnlimited or TTLMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ScanKeys yields live keys matching pattern in no particular order.
	// The sequence stops after yielding a non-nil error.
	ScanKeys(ctx context.Context, pattern string) iter.Seq2[string, error]

	// Close releases resources. Safe to call more than once.
	Close(ctx context.Context) error
}

// Entry is a single write in a SetMany call.
type Entry struct {
	Key   string
	Value []byte
}

// MultiSetter is implemented by stores that can write many entries
// without expiry in one round trip.
type MultiSetter interface {
	SetMany(ctx context.Context, entries []Entry) error
}

// Toucher is implemented by stores that can refresh an entry's freshness
// marker without rewriting its payload.
type Toucher interface {
	Touch(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that hold expired entries until swept.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Compile parses a key pattern. Syntax errors wrap ErrInvalidPattern.
func Compile(p string) (*pattern.Matcher, error) {
	m, err := pattern.Compile(p)
	if err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}
	return m, nil
}

// RemoveMatching scans pattern on s and removes every yielded key one by one.
// Keys removed before a failure stay removed.
func RemoveMatching(ctx context.Context, s Store, pattern string) error {
	var keys []string
	for k, err := range s.ScanKeys(ctx, pattern) {
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Remove(ctx, k); err != nil {
			return fmt.Errorf("store: remove %q: %w", k, err)
		}
	}
	return nil
}

// SetEach writes entries one by one without expiry. Stores that lack a
// native multi-key write use it to implement MultiSetter.
func SetEach(ctx context.Context, s Store, entries []Entry) error {
	for _, e := range entries {
		if err := s.Set(ctx, e.Key, e.Value, 0); err != nil {
			return err
		}
	}
	return nil
}

// ErrSeq yields err as the only element of a key sequence.
func ErrSeq(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
