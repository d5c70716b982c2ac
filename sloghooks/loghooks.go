package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/asidecache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ asidecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("asidecache.hit", "key", h.redact(key))
}

func (h *Hooks) Miss(key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("asidecache.miss", "key", h.redact(key))
}

func (h *Hooks) ProducerFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("asidecache.producer_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) DecodeFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("asidecache.decode_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) WriteRejected(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("asidecache.write_rejected",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) BatchFlushed(count int, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("asidecache.batch_flush_failed", "count", count, "err", err)
		return
	}
	h.l.Debug("asidecache.batch_flushed", "count", count)
}

func (h *Hooks) RetryScheduled(op string, attempt int, wait time.Duration, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("asidecache.retry_scheduled",
		"op", op,
		"attempt", attempt,
		"wait", wait,
		"err", err)
}
