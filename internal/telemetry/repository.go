package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/retry"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/store"
)

var errNotAuthenticated = errors.New("session is not authenticated")

// TTLConfig holds cache windows per resource kind.
type TTLConfig struct {
	Stations store.TTL
	Widget   store.TTL
	History  store.TTL
	Chart    store.TTL
}

// DefaultTTLs keeps live values short-lived and the station list long-lived.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Stations: store.TTL{Fresh: 10 * time.Minute, Stale: time.Hour},
		Widget:   store.TTL{Fresh: 30 * time.Second, Stale: 5 * time.Minute},
		History:  store.TTL{Fresh: 5 * time.Minute, Stale: 30 * time.Minute},
		Chart:    store.TTL{Fresh: 5 * time.Minute, Stale: 30 * time.Minute},
	}
}

func (c TTLConfig) forKind(kind ResourceKind) store.TTL {
	switch kind {
	case ResourceWidget:
		return c.Widget
	case ResourceHistory:
		return c.History
	case ResourceChart:
		return c.Chart
	default:
		return c.Stations
	}
}

// Repository exposes one cached, coalesced, retried operation per resource kind.
type Repository struct {
	cache      *store.Cache
	transport  Transport
	resilient  *resilientTransport
	session    Session
	notifier   SessionNotifier
	validateID IDValidator
	ttls       TTLConfig
	policy     retry.Policy
	breaker    BreakerConfig
}

// Option configures a Repository.
type Option func(*Repository)

func WithCache(c *store.Cache) Option { return func(r *Repository) { r.cache = c } }

func WithRetryPolicy(p retry.Policy) Option { return func(r *Repository) { r.policy = p } }

// WithBreaker enables per-request circuit breakers. They are off by default.
func WithBreaker(cfg BreakerConfig) Option { return func(r *Repository) { r.breaker = cfg } }

func WithTTLs(ttls TTLConfig) Option { return func(r *Repository) { r.ttls = ttls } }

func WithIDValidator(v IDValidator) Option { return func(r *Repository) { r.validateID = v } }

func WithSessionNotifier(n SessionNotifier) Option {
	return func(r *Repository) { r.notifier = n }
}

// NewRepository creates a Repository over transport. session is only read.
func NewRepository(transport Transport, session Session, opts ...Option) *Repository {
	r := &Repository{
		transport:  transport,
		session:    session,
		validateID: ValidateStationID,
		ttls:       DefaultTTLs(),
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = store.New()
	}
	r.resilient = newResilientTransport(transport, r.policy, r.breaker)
	return r
}

// ListStations returns all stations visible to the session.
func (r *Repository) ListStations(ctx context.Context) resource.Resource[[]Station] {
	return fetch[[]Station](ctx, r, Request{Kind: ResourceStations}, nil)
}

// GetWidgetSnapshot returns the latest live values for a station.
func (r *Repository) GetWidgetSnapshot(ctx context.Context, stationID string) resource.Resource[WidgetSnapshot] {
	if err := r.checkStationID(stationID); err != nil {
		return resource.Failure[WidgetSnapshot](err)
	}
	req := Request{Kind: ResourceWidget, StationID: stationID}
	return fetch(ctx, r, req, func(w *WidgetSnapshot) {
		w.StationID = stationID
	})
}

// GetHistoricalSeries returns the station's readings over [from, to].
func (r *Repository) GetHistoricalSeries(ctx context.Context, stationID string, from, to time.Time) resource.Resource[HistoricalSeries] {
	if err := r.checkRange(stationID, from, to); err != nil {
		return resource.Failure[HistoricalSeries](err)
	}
	req := Request{Kind: ResourceHistory, StationID: stationID, From: from.UTC(), To: to.UTC()}
	return fetch(ctx, r, req, func(h *HistoricalSeries) {
		h.StationID = stationID
		if h.From.IsZero() {
			h.From = req.From
		}
		if h.To.IsZero() {
			h.To = req.To
		}
	})
}

// GetChartSeries returns the station's multi-parameter chart data over [from, to].
func (r *Repository) GetChartSeries(ctx context.Context, stationID string, from, to time.Time) resource.Resource[ChartSeries] {
	if err := r.checkRange(stationID, from, to); err != nil {
		return resource.Failure[ChartSeries](err)
	}
	req := Request{Kind: ResourceChart, StationID: stationID, From: from.UTC(), To: to.UTC()}
	return fetch(ctx, r, req, func(c *ChartSeries) {
		c.StationID = stationID
		if c.From.IsZero() {
			c.From = req.From
		}
		if c.To.IsZero() {
			c.To = req.To
		}
	})
}

// InvalidateStation evicts every cached resource of a station.
func (r *Repository) InvalidateStation(stationID string) int {
	return r.cache.InvalidateMatching(func(key string) bool {
		parts := strings.SplitN(key, ":", 3)
		return len(parts) >= 2 && parts[1] == stationID
	})
}

// Reset drops all cached data, e.g. on sign-out.
func (r *Repository) Reset() {
	r.cache.Clear()
	r.resilient.forget()
}

// Sweep evicts cache entries past their retention window.
func (r *Repository) Sweep() int {
	r.resilient.prune()
	return r.cache.Sweep()
}

func (r *Repository) checkStationID(id string) *resource.Error {
	if err := r.validateID(id); err != nil {
		e := resource.Classify(err)
		if e.Kind != resource.KindValidation {
			e = resource.Validation("invalid station id")
		}
		return e
	}
	return nil
}

func (r *Repository) checkRange(id string, from, to time.Time) *resource.Error {
	if err := r.checkStationID(id); err != nil {
		return err
	}
	if err := validateRange(from, to); err != nil {
		return resource.Classify(err)
	}
	return nil
}

func (r *Repository) sessionExpired(req Request) {
	n := r.cache.ClearAuthenticated()
	logger.Warn().Str("key", req.CacheKey()).Int("evicted", n).Msg("session expired")
	if r.notifier != nil {
		r.notifier.NotifySessionExpired()
	}
}

func fetch[T any](ctx context.Context, r *Repository, req Request, fill func(*T)) resource.Resource[T] {
	ttl := r.ttls.forKind(req.Kind)
	if req.Kind.Authenticated() {
		ttl.Authenticated = true
		if !r.session.IsAuthenticated() {
			r.sessionExpired(req)
			return resource.Failure[T](resource.New(resource.KindAuthExpired, 0, errNotAuthenticated))
		}
	}

	key := req.CacheKey()
	return store.GetOrFetch(ctx, r.cache, key, ttl, func(ctx context.Context) (T, error) {
		var v T

		body, err := r.resilient.perform(ctx, req)
		if err != nil {
			e := resource.Classify(err)
			logger.Debug().Str("key", key).Str("kind", e.Kind.String()).Int("code", e.Code).Msg("fetch failed")
			if e.Kind == resource.KindAuthExpired {
				r.sessionExpired(req)
			}
			return v, e
		}

		if err := sonic.Unmarshal(body, &v); err != nil {
			return v, resource.New(resource.KindUnknown, 0, fmt.Errorf("decode %s: %w", req.Kind, err))
		}
		if fill != nil {
			fill(&v)
		}
		return v, nil
	})
}
