package memstore

import (
	"time"

	"github.com/unkn0wn-root/asidecache/expiration"
)

type options struct {
	maxEntries    int
	sweepInterval time.Duration
	clock         expiration.Clock
	policy        expiration.Policy
	onSweep       func(removed int)
}

func defaultOptions() *options {
	return &options{
		clock:  expiration.SystemClock,
		policy: expiration.GeneralPolicy{},
	}
}

// Option configures a Store.
type Option func(*options)

// WithMaxEntries caps the number of entries. 0 means unbounded.
// Expired entries still count until they are swept.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithSweepInterval starts a background sweep every d. Stopped by Close.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(c expiration.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithPolicy replaces the expiration policy (default expiration.GeneralPolicy).
func WithPolicy(p expiration.Policy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithOnSweep registers a callback invoked after every sweep that removed entries.
// It runs with no lock held.
func WithOnSweep(fn func(removed int)) Option {
	return func(o *options) {
		o.onSweep = fn
	}
}
