package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/retry"
)

var errCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig controls the per-request circuit breakers. A zero
// ConsecutiveFailures disables them.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// resilientTransport executes transport calls with retries, exponential
// backoff and a circuit breaker per cache key, so one station's outage never
// short-circuits another's fetches. Retries are fully resolved here so
// coalesced waiters only ever see the final outcome.
type resilientTransport struct {
	transport Transport
	policy    retry.Policy
	breaker   BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newResilientTransport(t Transport, policy retry.Policy, cfg BreakerConfig) *resilientTransport {
	if cfg.ConsecutiveFailures > 0 && cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &resilientTransport{
		transport: t,
		policy:    policy,
		breaker:   cfg,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

// breakerFor returns the breaker guarding key, creating it on first use.
// It returns nil when breakers are disabled.
func (rt *resilientTransport) breakerFor(key string) *gobreaker.CircuitBreaker {
	if rt.breaker.ConsecutiveFailures == 0 {
		return nil
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if cb, ok := rt.breakers[key]; ok {
		return cb
	}
	threshold := rt.breaker.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     rt.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only transient failures say anything about the remote's health.
		IsSuccessful: func(err error) bool {
			return err == nil || !retry.Retryable(resource.Classify(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	rt.breakers[key] = cb
	return cb
}

// prune drops breakers that are closed with no failures recorded.
func (rt *resilientTransport) prune() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for key, cb := range rt.breakers {
		if cb.State() == gobreaker.StateClosed && cb.Counts().ConsecutiveFailures == 0 {
			delete(rt.breakers, key)
		}
	}
}

func (rt *resilientTransport) forget() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	clear(rt.breakers)
}

func (rt *resilientTransport) call(ctx context.Context, req Request) ([]byte, error) {
	cb := rt.breakerFor(req.CacheKey())
	if cb == nil {
		return rt.transport.Perform(ctx, req)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		return rt.transport.Perform(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(resource.New(resource.KindNetwork, 0, fmt.Errorf("%w: %v", errCircuitOpen, err)))
		}
		return nil, err
	}

	body, _ := result.([]byte)
	return body, nil
}

// perform runs req until it succeeds, the policy gives up, or ctx ends.
func (rt *resilientTransport) perform(ctx context.Context, req Request) ([]byte, error) {
	b := retry.NewBackOff(rt.policy)

	var body []byte
	var attempt int
	operation := func() error {
		attempt = b.Attempt()
		res, err := rt.call(ctx, req)
		if err != nil {
			var permanent *backoff.PermanentError
			if errors.As(err, &permanent) {
				return err
			}
			classified := resource.Classify(err)
			b.Record(classified)
			return classified
		}
		body = res
		return nil
	}

	notify := func(err error, delay time.Duration) {
		logger.Warn().
			Str("key", req.CacheKey()).
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("kind", resource.Classify(err).Kind.String()).
			Msg("transport call failed; retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, resource.Classify(err)
	}
	return body, nil
}
