package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
)

func TestNextDelayExponential(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
	network := resource.New(resource.KindNetwork, 0, nil)

	tests := []struct {
		attempt int
		want    time.Duration
		ok      bool
	}{
		{attempt: 0, want: 100 * time.Millisecond, ok: true},
		{attempt: 1, want: 200 * time.Millisecond, ok: true},
		{attempt: 2, want: 250 * time.Millisecond, ok: true},
		{attempt: 3, want: 250 * time.Millisecond, ok: true},
		{attempt: 4, ok: false},
	}
	for _, tt := range tests {
		got, ok := p.NextDelay(tt.attempt, network)
		assert.Equal(t, tt.ok, ok, "attempt %d", tt.attempt)
		assert.Equal(t, tt.want, got, "attempt %d", tt.attempt)
	}
}

func TestNextDelayNeverRetries(t *testing.T) {
	p := DefaultPolicy()
	for _, e := range []*resource.Error{
		resource.Validation("bad id"),
		resource.New(resource.KindAuthExpired, 401, nil),
		resource.New(resource.KindHTTP, 404, nil),
		resource.New(resource.KindUnknown, 0, nil),
		nil,
	} {
		_, ok := p.NextDelay(0, e)
		assert.False(t, ok)
	}
}

func TestNextDelayHTTPServerError(t *testing.T) {
	d, ok := DefaultPolicy().NextDelay(0, &resource.Error{Kind: resource.KindHTTP, Code: 502})
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestNextDelayDefaultAttempts(t *testing.T) {
	p := Policy{Base: time.Millisecond}
	network := resource.New(resource.KindNetwork, 0, nil)
	_, ok := p.NextDelay(1, network)
	assert.True(t, ok)
	_, ok = p.NextDelay(2, network)
	assert.False(t, ok)
}

func TestNextDelayJitter(t *testing.T) {
	p := DefaultPolicy()
	p.Jitter = func(d time.Duration) time.Duration { return d + time.Millisecond }
	d, ok := p.NextDelay(0, resource.New(resource.KindNetwork, 0, nil))
	require.True(t, ok)
	assert.Equal(t, 501*time.Millisecond, d)
}

func TestBackOffDrivesRetryLoop(t *testing.T) {
	b := NewBackOff(Policy{MaxAttempts: 3, Base: time.Millisecond, MaxDelay: time.Millisecond})

	calls := 0
	var attempts []int
	err := backoff.Retry(func() error {
		calls++
		attempts = append(attempts, b.Attempt())
		e := resource.New(resource.KindNetwork, 0, errors.New("refused"))
		b.Record(e)
		return e
	}, b)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{0, 1, 2}, attempts, "Attempt is the index of the running attempt")
	assert.True(t, errors.Is(err, resource.ErrNetwork))
}
