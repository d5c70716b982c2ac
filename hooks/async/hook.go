// Package asynchook moves hook delivery off the cache's hot path.
//
// Events are queued to a fixed worker pool and dropped when the queue
// is full, so a slow sink never stalls a lookup:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	c, _ := asidecache.New(asidecache.Options[User]{
//	    Store: rs,
//	    Hooks: hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/asidecache"
)

type Hooks struct {
	inner   asidecache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ asidecache.Hooks = (*Hooks)(nil)

func New(inner asidecache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = asidecache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for range workers {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
// Events raised after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k string)  { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string) { h.try(func() { h.inner.Miss(k) }) }

func (h *Hooks) ProducerFailed(k string, err error) {
	h.try(func() { h.inner.ProducerFailed(k, err) })
}

func (h *Hooks) DecodeFailed(k string, err error) {
	h.try(func() { h.inner.DecodeFailed(k, err) })
}

func (h *Hooks) WriteRejected(k string, err error) {
	h.try(func() { h.inner.WriteRejected(k, err) })
}

func (h *Hooks) BatchFlushed(n int, err error) {
	h.try(func() { h.inner.BatchFlushed(n, err) })
}

func (h *Hooks) RetryScheduled(op string, attempt int, wait time.Duration, err error) {
	h.try(func() { h.inner.RetryScheduled(op, attempt, wait, err) })
}
