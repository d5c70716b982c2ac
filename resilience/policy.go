package resilience

import "time"

// Policy describes how often and how patiently a failed call is retried.
type Policy struct {
	// MaxAttempts counts the first call. Values <= 1 disable retries.
	MaxAttempts int
	// Backoff returns the wait before retry number attempt (starting at 1).
	// Nil uses 2^attempt milliseconds.
	Backoff func(attempt int) time.Duration
}

// Policies selects a policy per call class. Get covers reads (Get, Exists,
// TTL, ScanKeys, Touch), Set covers writes (Set, SetMany, Remove,
// RemoveByPattern, Clear, Sweep). A nil class policy falls back to Default;
// a nil Default means no retries.
type Policies struct {
	Default *Policy
	Get     *Policy
	Set     *Policy
}

func (p Policies) read() *Policy  { return pick(p.Get, p.Default) }
func (p Policies) write() *Policy { return pick(p.Set, p.Default) }

func pick(specific, def *Policy) *Policy {
	if specific != nil {
		return specific
	}
	return def
}

// Exponential is a policy of maxAttempts calls waiting 2, 4, 8... ms between them.
func Exponential(maxAttempts int) *Policy {
	return &Policy{MaxAttempts: maxAttempts, Backoff: exponential}
}

func exponential(attempt int) time.Duration {
	return time.Duration(1<<min(attempt, 30)) * time.Millisecond
}

func (p *Policy) wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return exponential(attempt)
	}
	return max(p.Backoff(attempt), 0)
}
