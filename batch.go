package asidecache

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/store"
)

// Result is one resolved stream item.
type Result[V any] struct {
	Key    string
	Value  V
	Found  bool // Value holds a value, either cached or computed
	Cached bool // Value came from the store or an earlier write in the same stream
}

// GetOrComputeStream checks each item in arrival order: a hit yields the
// stored value, a miss resolves the item's source, writes it under ttl and
// yields it. With ttl <= 0 and a store.MultiSetter, miss writes are buffered
// and flushed together every BatchSize items, at the end of items, when the
// consumer stops early and before an error is yielded. A key buffered earlier
// in the stream is a hit for its later duplicates.
//
// Buffered misses are yielded with Found set before their write lands. A
// capacity or backend failure at flush is yielded as an error only after
// those items; after an early stop it reaches Hooks.BatchFlushed and the log
// but not the consumer. A yielded miss is therefore not proof of persistence.
//
// The first failure is yielded as (zero, err) and ends the sequence.
func (cc *cache[V]) GetOrComputeStream(ctx context.Context, items iter.Seq[Item[V]], ttl time.Duration) iter.Seq2[Result[V], error] {
	return func(yield func(Result[V], error) bool) {
		w := cc.newWriter(ttl)
		fail := func(err error) {
			w.flushQuietly(ctx)
			yield(Result[V]{}, err)
		}

		for it := range items {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			res, err := cc.resolve(ctx, w, it)
			if err != nil {
				fail(err)
				return
			}
			if !yield(res, nil) {
				w.flushQuietly(ctx)
				return
			}
			if w.full() {
				if err := w.flush(ctx); err != nil {
					yield(Result[V]{}, err)
					return
				}
			}
		}
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		if err := w.flush(ctx); err != nil {
			yield(Result[V]{}, err)
		}
	}
}

func (cc *cache[V]) resolve(ctx context.Context, w *writer[V], it Item[V]) (Result[V], error) {
	res := Result[V]{Key: it.Key}
	if !util.ValidKey(it.Key) {
		return res, store.ErrInvalidKey
	}
	if v, ok := w.pending[it.Key]; ok {
		res.Value, res.Found, res.Cached = v, true, true
		return res, nil
	}

	v, ok, err := cc.Get(ctx, it.Key)
	if err != nil {
		return res, err
	}
	if ok {
		cc.touch(ctx, it.Key)
		res.Value, res.Found, res.Cached = v, true, true
		return res, nil
	}

	v, ok, err = it.Source.Resolve(ctx)
	if err != nil {
		cc.hooks.ProducerFailed(it.Key, err)
		return res, err
	}
	if !ok {
		return res, nil
	}
	if err := w.write(ctx, it.Key, v); err != nil {
		return res, err
	}
	res.Value, res.Found = v, true
	return res, nil
}

func (cc *cache[V]) touch(ctx context.Context, key string) {
	if !cc.touchOnHit {
		return
	}
	t, ok := cc.store.(store.Toucher)
	if !ok {
		return
	}
	if err := t.Touch(ctx, key); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		cc.log.Warn("touch failed", Fields{"key": key, "err": err})
	}
}

// SetStream resolves every item's source and writes present values under ttl,
// coalescing the same way GetOrComputeStream does. It stops at the first error.
func (cc *cache[V]) SetStream(ctx context.Context, items iter.Seq[Item[V]], ttl time.Duration) error {
	w := cc.newWriter(ttl)
	for it := range items {
		if err := ctx.Err(); err != nil {
			w.flushQuietly(ctx)
			return err
		}
		if !util.ValidKey(it.Key) {
			w.flushQuietly(ctx)
			return store.ErrInvalidKey
		}
		v, ok, err := it.Source.Resolve(ctx)
		if err != nil {
			cc.hooks.ProducerFailed(it.Key, err)
			w.flushQuietly(ctx)
			return err
		}
		if !ok {
			continue
		}
		if err := w.write(ctx, it.Key, v); err != nil {
			w.flushQuietly(ctx)
			return err
		}
		if w.full() {
			if err := w.flush(ctx); err != nil {
				return err
			}
		}
	}
	return w.flush(ctx)
}

// writer buffers no-expiry writes for a MultiSetter store. Without one it
// writes through.
type writer[V any] struct {
	cc      *cache[V]
	ttl     time.Duration
	ms      store.MultiSetter
	pending map[string]V
	entries []store.Entry
}

func (cc *cache[V]) newWriter(ttl time.Duration) *writer[V] {
	w := &writer[V]{cc: cc, ttl: ttl}
	if ms, ok := cc.store.(store.MultiSetter); ok && ttl <= 0 && cc.enabled {
		w.ms = ms
		w.pending = make(map[string]V, cc.batchSize)
		w.entries = make([]store.Entry, 0, cc.batchSize)
	}
	return w
}

func (w *writer[V]) write(ctx context.Context, key string, v V) error {
	if w.ms == nil {
		if err := w.cc.Set(ctx, key, v, w.ttl); err != nil {
			return err
		}
		w.cc.log.Debug("computed and stored", Fields{"key": key, "ttl": w.ttl})
		return nil
	}
	payload, err := w.cc.encode(key, v)
	if err != nil {
		return err
	}
	w.pending[key] = v
	w.entries = append(w.entries, store.Entry{Key: key, Value: payload})
	return nil
}

func (w *writer[V]) full() bool {
	return w.ms != nil && len(w.entries) >= w.cc.batchSize
}

func (w *writer[V]) flush(ctx context.Context) error {
	if len(w.entries) == 0 {
		return nil
	}
	n := len(w.entries)
	err := w.ms.SetMany(ctx, w.entries)
	if errors.Is(err, errors.ErrUnsupported) {
		err = store.SetEach(ctx, w.cc.store, w.entries)
	}
	w.cc.hooks.BatchFlushed(n, err)
	if err != nil {
		w.cc.log.Warn("coalesced write failed", Fields{"count": n, "err": err})
	}
	clear(w.pending)
	w.entries = w.entries[:0]
	return err
}

// flushQuietly writes what is buffered before the stream ends on an error or
// early stop. Cancellation of ctx does not abort it.
func (w *writer[V]) flushQuietly(ctx context.Context) {
	_ = w.flush(context.WithoutCancel(ctx))
}
