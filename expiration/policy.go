package expiration

import (
	"math/rand/v2"
	"time"
)

// Policy decides whether an entry whose deadline is expiresAt is expired at now.
// Implementations never see a zero expiresAt; Expired filters it out first.
type Policy interface {
	IsExpired(now, expiresAt time.Time) bool
}

// GeneralPolicy expires an entry once now is strictly after its deadline.
type GeneralPolicy struct{}

var _ Policy = GeneralPolicy{}

func (GeneralPolicy) IsExpired(now, expiresAt time.Time) bool {
	return now.After(expiresAt)
}

// NeverPolicy never expires an entry. Useful for tests that must not race the clock.
type NeverPolicy struct{}

var _ Policy = NeverPolicy{}

func (NeverPolicy) IsExpired(time.Time, time.Time) bool { return false }

// EarlyPolicy may expire an entry up to Duration before its deadline.
// With probability Percentage the check is made against now+Duration, which
// spreads refreshes of hot keys across callers.
type EarlyPolicy struct {
	Duration   time.Duration
	Percentage float64 // in [0, 1]

	// Random is used to decide early expiration. Nil uses the global source.
	Random *rand.Rand
}

var _ Policy = (*EarlyPolicy)(nil)

func (p *EarlyPolicy) IsExpired(now, expiresAt time.Time) bool {
	if p.randFloat64() >= p.Percentage {
		return now.After(expiresAt)
	}
	return now.Add(p.Duration).After(expiresAt)
}

func (p *EarlyPolicy) randFloat64() float64 {
	if p.Random == nil {
		return rand.Float64()
	}
	return p.Random.Float64()
}

// Deadline converts a relative ttl into an absolute deadline.
// A non-positive ttl yields the zero time (never expires).
func Deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Expired reports whether the deadline has passed under p.
// A zero deadline is never expired.
func Expired(p Policy, now, deadline time.Time) bool {
	if deadline.IsZero() {
		return false
	}
	return p.IsExpired(now, deadline)
}

// Remaining returns the time left until deadline.
// ok is false for a zero (unlimited) deadline. The returned duration is
// clamped at zero for deadlines already in the past.
func Remaining(now, deadline time.Time) (d time.Duration, ok bool) {
	if deadline.IsZero() {
		return 0, false
	}
	return max(deadline.Sub(now), 0), true
}
