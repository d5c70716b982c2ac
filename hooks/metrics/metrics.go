// Package metrics counts cache events in a VictoriaMetrics metric set
// and exposes them in Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/unkn0wn-root/asidecache"
)

type Hooks struct {
	set  *vm.Set
	name string

	hits, misses     *vm.Counter
	producerFailures *vm.Counter
	decodeFailures   *vm.Counter
	writeRejections  *vm.Counter
	flushes          *vm.Counter
	flushFailures    *vm.Counter
	flushedEntries   *vm.Counter
	retryWait        *vm.Histogram
}

var _ asidecache.Hooks = (*Hooks)(nil)

// New registers counters labelled cache=name in a fresh set.
func New(name string) *Hooks {
	s := vm.NewSet()
	h := &Hooks{set: s, name: name}
	h.hits = s.GetOrCreateCounter(h.metric("asidecache_hits_total", ""))
	h.misses = s.GetOrCreateCounter(h.metric("asidecache_misses_total", ""))
	h.producerFailures = s.GetOrCreateCounter(h.metric("asidecache_producer_failures_total", ""))
	h.decodeFailures = s.GetOrCreateCounter(h.metric("asidecache_decode_failures_total", ""))
	h.writeRejections = s.GetOrCreateCounter(h.metric("asidecache_write_rejections_total", ""))
	h.flushes = s.GetOrCreateCounter(h.metric("asidecache_batch_flushes_total", ""))
	h.flushFailures = s.GetOrCreateCounter(h.metric("asidecache_batch_flush_failures_total", ""))
	h.flushedEntries = s.GetOrCreateCounter(h.metric("asidecache_batch_entries_total", ""))
	h.retryWait = s.GetOrCreateHistogram(h.metric("asidecache_retry_wait_seconds", ""))
	return h
}

func (h *Hooks) metric(base, extra string) string {
	if extra != "" {
		return fmt.Sprintf(`%s{cache=%q,%s}`, base, h.name, extra)
	}
	return fmt.Sprintf(`%s{cache=%q}`, base, h.name)
}

// Set returns the underlying metric set, e.g. for vm.RegisterSet.
func (h *Hooks) Set() *vm.Set { return h.set }

// WritePrometheus writes every metric in the set.
func (h *Hooks) WritePrometheus(w io.Writer) { h.set.WritePrometheus(w) }

func (h *Hooks) Hit(string)                   { h.hits.Inc() }
func (h *Hooks) Miss(string)                  { h.misses.Inc() }
func (h *Hooks) ProducerFailed(string, error) { h.producerFailures.Inc() }
func (h *Hooks) DecodeFailed(string, error)   { h.decodeFailures.Inc() }
func (h *Hooks) WriteRejected(string, error)  { h.writeRejections.Inc() }

func (h *Hooks) BatchFlushed(count int, err error) {
	if err != nil {
		h.flushFailures.Inc()
		return
	}
	h.flushes.Inc()
	h.flushedEntries.Add(count)
}

func (h *Hooks) RetryScheduled(op string, _ int, wait time.Duration, _ error) {
	h.set.GetOrCreateCounter(h.metric("asidecache_retries_total", fmt.Sprintf("op=%q", op))).Inc()
	h.retryWait.Update(wait.Seconds())
}
