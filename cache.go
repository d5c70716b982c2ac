package asidecache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/asidecache/codec"
	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/store"
)

const defaultBatchSize = 100

type cache[V any] struct {
	store      store.Store
	codec      c.Codec[V]
	log        Logger
	hooks      Hooks
	batchSize  int
	enabled    bool
	touchOnHit bool
	flight     *singleflight.Group
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, ErrNilStore
	}

	cc := &cache[V]{
		store:      opts.Store,
		codec:      opts.Codec,
		enabled:    !opts.Disabled,
		touchOnHit: opts.TouchOnHit,
	}

	// defaults
	if cc.codec == nil {
		cc.codec = c.JSON[V]{}
	}
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.batchSize = coalesce(opts.BatchSize, defaultBatchSize)
	if cc.batchSize < 1 {
		cc.batchSize = 1
	}
	if opts.SingleFlight {
		cc.flight = &singleflight.Group{}
	}

	return cc, nil
}

func (cc *cache[V]) Enabled() bool { return cc.enabled }

func (cc *cache[V]) Close(ctx context.Context) error {
	return cc.store.Close(ctx)
}

func (cc *cache[V]) GetOrCompute(ctx context.Context, key string, producer Producer[V], ttl time.Duration) (V, bool, error) {
	var zero V
	if !util.ValidKey(key) {
		return zero, false, store.ErrInvalidKey
	}
	if v, ok, err := cc.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	if cc.flight == nil {
		return cc.compute(ctx, key, producer, ttl)
	}

	// The producer runs with the context of whichever caller got there first.
	res, err, _ := cc.flight.Do(key, func() (any, error) {
		v, ok, err := cc.compute(ctx, key, producer, ttl)
		return computed[V]{v: v, ok: ok}, err
	})
	if err != nil {
		return zero, false, err
	}
	r := res.(computed[V])
	return r.v, r.ok, nil
}

type computed[V any] struct {
	v  V
	ok bool
}

// compute runs producer and stores a present result. The computed value is
// returned as-is, never re-read from the store.
func (cc *cache[V]) compute(ctx context.Context, key string, producer Producer[V], ttl time.Duration) (V, bool, error) {
	var zero V
	v, err := producer(ctx)
	if err != nil {
		cc.hooks.ProducerFailed(key, err)
		return zero, false, err
	}
	if absent(v) {
		cc.log.Debug("producer returned no value; nothing cached", Fields{"key": key})
		return zero, false, nil
	}
	if err := cc.Set(ctx, key, v, ttl); err != nil {
		return zero, false, err
	}
	cc.log.Debug("computed and stored", Fields{"key": key, "ttl": ttl})
	return v, true, nil
}

func (cc *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !util.ValidKey(key) {
		return zero, false, store.ErrInvalidKey
	}
	if !cc.enabled {
		return zero, false, nil
	}
	raw, ok, err := cc.store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		cc.hooks.Miss(key)
		return zero, false, nil
	}
	v, err := cc.codec.Decode(raw)
	if err != nil {
		cc.hooks.DecodeFailed(key, err)
		cc.log.Error("stored value could not be decoded", Fields{"key": key, "err": err})
		return zero, false, &CodecError{Key: key, Decode: true, Err: err}
	}
	cc.hooks.Hit(key)
	return v, true, nil
}

func (cc *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	if !cc.enabled || absent(value) {
		return nil
	}
	payload, err := cc.encode(key, value)
	if err != nil {
		return err
	}
	if err := cc.store.Set(ctx, key, payload, ttl); err != nil {
		cc.hooks.WriteRejected(key, err)
		return err
	}
	return nil
}

func (cc *cache[V]) encode(key string, value V) ([]byte, error) {
	payload, err := cc.codec.Encode(value)
	if err != nil {
		return nil, &CodecError{Key: key, Err: err}
	}
	return payload, nil
}

func (cc *cache[V]) Remove(ctx context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	if !cc.enabled {
		return nil
	}
	return cc.store.Remove(ctx, key)
}

// RemoveByPattern scans then removes each match. Not atomic: keys written
// during the scan may survive.
func (cc *cache[V]) RemoveByPattern(ctx context.Context, pattern string) error {
	if !cc.enabled {
		return nil
	}
	return cc.store.RemoveByPattern(ctx, pattern)
}

func (cc *cache[V]) Clear(ctx context.Context) error {
	if !cc.enabled {
		return nil
	}
	return cc.store.Clear(ctx)
}

func (cc *cache[V]) Exists(ctx context.Context, key string) (bool, error) {
	if !util.ValidKey(key) {
		return false, store.ErrInvalidKey
	}
	if !cc.enabled {
		return false, nil
	}
	return cc.store.Exists(ctx, key)
}

func (cc *cache[V]) TimeToLive(ctx context.Context, key string) (time.Duration, bool, error) {
	if !util.ValidKey(key) {
		return 0, false, store.ErrInvalidKey
	}
	if !cc.enabled {
		return 0, false, nil
	}
	d, err := cc.store.TTL(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if d < 0 { // store.TTLMissing or store.TTLUnlimited
		return 0, false, nil
	}
	return d, true, nil
}

func (cc *cache[V]) TimeToLiveSeconds(ctx context.Context, key string) (int64, error) {
	d, ok, err := cc.TimeToLive(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	return int64(d / time.Second), nil
}

// Async

func (cc *cache[V]) GetOrComputeAsync(ctx context.Context, key string, producer Producer[V], ttl time.Duration) *Future[V] {
	return spawn(ctx, func(ctx context.Context) (V, bool, error) {
		return cc.GetOrCompute(ctx, key, producer, ttl)
	})
}

func (cc *cache[V]) GetAsync(ctx context.Context, key string) *Future[V] {
	return spawn(ctx, func(ctx context.Context) (V, bool, error) {
		return cc.Get(ctx, key)
	})
}

func (cc *cache[V]) SetAsync(ctx context.Context, key string, value V, ttl time.Duration) *Future[struct{}] {
	return spawn(ctx, done(func(ctx context.Context) error {
		return cc.Set(ctx, key, value, ttl)
	}))
}

func (cc *cache[V]) RemoveAsync(ctx context.Context, key string) *Future[struct{}] {
	return spawn(ctx, done(func(ctx context.Context) error {
		return cc.Remove(ctx, key)
	}))
}

func (cc *cache[V]) RemoveByPatternAsync(ctx context.Context, pattern string) *Future[struct{}] {
	return spawn(ctx, done(func(ctx context.Context) error {
		return cc.RemoveByPattern(ctx, pattern)
	}))
}

func (cc *cache[V]) ClearAsync(ctx context.Context) *Future[struct{}] {
	return spawn(ctx, done(cc.Clear))
}

func (cc *cache[V]) ExistsAsync(ctx context.Context, key string) *Future[bool] {
	return spawn(ctx, func(ctx context.Context) (bool, bool, error) {
		ok, err := cc.Exists(ctx, key)
		return ok, err == nil, err
	})
}

// TimeToLiveAsync resolves with ok=false when the key is absent or unlimited.
func (cc *cache[V]) TimeToLiveAsync(ctx context.Context, key string) *Future[time.Duration] {
	return spawn(ctx, func(ctx context.Context) (time.Duration, bool, error) {
		return cc.TimeToLive(ctx, key)
	})
}

func done(fn func(context.Context) error) func(context.Context) (struct{}, bool, error) {
	return func(ctx context.Context) (struct{}, bool, error) {
		err := fn(ctx)
		return struct{}{}, err == nil, err
	}
}
