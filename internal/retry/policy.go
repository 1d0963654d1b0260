package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
)

// Policy controls exponential backoff for transient failures.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	Base        time.Duration
	MaxDelay    time.Duration

	// Jitter, when set, adjusts each computed delay. Leave nil for
	// deterministic delays.
	Jitter func(time.Duration) time.Duration
}

// DefaultPolicy mirrors the provider defaults: three attempts, 500ms base, 5s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Retryable reports whether a failure of this kind may be retried at all.
func Retryable(e *resource.Error) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case resource.KindNetwork:
		return true
	case resource.KindHTTP:
		return e.Code >= 500
	default:
		return false
	}
}

// NextDelay returns how long to wait before retrying after the given failed
// attempt (0-based), or false when the error must be surfaced.
func (p Policy) NextDelay(attempt int, e *resource.Error) (time.Duration, bool) {
	if !Retryable(e) {
		return 0, false
	}
	if attempt < 0 || attempt+1 >= p.maxAttempts() {
		return 0, false
	}

	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter != nil {
		delay = p.Jitter(delay)
	}
	return delay, true
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

// BackOff adapts Policy to backoff.BackOff. Record must be called with the
// classified failure before the retry loop asks for the next delay.
type BackOff struct {
	policy  Policy
	attempt int
	last    *resource.Error
}

var _ backoff.BackOff = (*BackOff)(nil)

// NewBackOff returns a fresh per-fetch backoff state.
func NewBackOff(p Policy) *BackOff {
	return &BackOff{policy: p}
}

// Record stores the failure of the current attempt.
func (b *BackOff) Record(e *resource.Error) { b.last = e }

// Attempt returns the 0-based index of the current attempt.
func (b *BackOff) Attempt() int { return b.attempt }

func (b *BackOff) NextBackOff() time.Duration {
	d, ok := b.policy.NextDelay(b.attempt, b.last)
	if !ok {
		return backoff.Stop
	}
	b.attempt++
	return d
}

func (b *BackOff) Reset() {
	b.attempt = 0
	b.last = nil
}
