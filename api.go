package asidecache

import (
	"context"
	"iter"
	"time"

	c "github.com/unkn0wn-root/asidecache/codec"
	"github.com/unkn0wn-root/asidecache/store"
)

// NoExpiry stores an entry without a deadline. Any ttl <= 0 means the same.
const NoExpiry time.Duration = 0

// Producer computes a value on a cache miss. Returning an absent value
// (nil pointer, map, slice, interface, func or chan) caches nothing.
type Producer[V any] func(ctx context.Context) (V, error)

// Cache is the cache-aside API over a store.Store.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
// Every method rejects an empty key with store.ErrInvalidKey before touching the store.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// GetOrCompute returns the cached value, or runs producer, stores its
	// result under ttl and returns it. ok is false only for an absent result.
	GetOrCompute(ctx context.Context, key string, producer Producer[V], ttl time.Duration) (v V, ok bool, err error)
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	RemoveByPattern(ctx context.Context, pattern string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)

	// TimeToLiveSeconds returns whole remaining seconds, or -1 when the key
	// is absent or has no expiry.
	TimeToLiveSeconds(ctx context.Context, key string) (int64, error)
	// TimeToLive returns the remaining lifetime; ok is false when the key is
	// absent or has no expiry.
	TimeToLive(ctx context.Context, key string) (d time.Duration, ok bool, err error)

	// Async forms run on their own goroutine and never block the caller.
	GetOrComputeAsync(ctx context.Context, key string, producer Producer[V], ttl time.Duration) *Future[V]
	GetAsync(ctx context.Context, key string) *Future[V]
	SetAsync(ctx context.Context, key string, value V, ttl time.Duration) *Future[struct{}]
	RemoveAsync(ctx context.Context, key string) *Future[struct{}]
	RemoveByPatternAsync(ctx context.Context, pattern string) *Future[struct{}]
	ClearAsync(ctx context.Context) *Future[struct{}]
	ExistsAsync(ctx context.Context, key string) *Future[bool]
	TimeToLiveAsync(ctx context.Context, key string) *Future[time.Duration]

	// GetOrComputeStream resolves items in arrival order and yields one
	// Result per item. The sequence ends after the first error. Coalesced
	// misses are yielded before they are written; see the implementation notes
	// on flush failures.
	GetOrComputeStream(ctx context.Context, items iter.Seq[Item[V]], ttl time.Duration) iter.Seq2[Result[V], error]
	// SetStream resolves and writes every item, stopping at the first error.
	SetStream(ctx context.Context, items iter.Seq[Item[V]], ttl time.Duration) error
}

// Options tune the behavior of the cache.
// Only Store is required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Store store.Store

	Codec     c.Codec[V] // if nil, codec.JSON[V]
	Logger    Logger     // if nil, NopLogger is used
	Hooks     Hooks      // if nil, NopHooks is used
	BatchSize int        // coalesced writes per flush in streams; 0 => 100

	// SingleFlight collapses concurrent misses for the same key into one
	// producer call. Off by default: concurrent misses each run the producer
	// and the last write wins.
	SingleFlight bool

	// TouchOnHit refreshes the entry's freshness marker on stream hits when
	// the store implements store.Toucher.
	TouchOnHit bool

	// Disabled turns every read into a miss and every write into a no-op.
	// GetOrCompute still runs the producer.
	Disabled bool
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
