package asidecache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A lookup found a live entry.
	Hit(key string)
	// A lookup found nothing (absent or expired).
	Miss(key string)

	// A producer returned an error or panicked; nothing was cached.
	ProducerFailed(key string, err error)

	// A stored payload could not be decoded.
	DecodeFailed(key string, err error)

	// The store refused a write (capacity, closed, backend error).
	WriteRejected(key string, err error)

	// A coalesced multi-key write finished. err is nil on success.
	BatchFlushed(count int, err error)

	// A store call failed transiently and will be retried after wait.
	// op is the Store method name, attempt starts at 1.
	RetryScheduled(op string, attempt int, wait time.Duration, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                                       {}
func (NopHooks) Miss(string)                                      {}
func (NopHooks) ProducerFailed(string, error)                     {}
func (NopHooks) DecodeFailed(string, error)                       {}
func (NopHooks) WriteRejected(string, error)                      {}
func (NopHooks) BatchFlushed(int, error)                          {}
func (NopHooks) RetryScheduled(string, int, time.Duration, error) {}
