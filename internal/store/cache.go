package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
)

// TTL configures freshness and retention for one cache entry.
type TTL struct {
	// Fresh entries are served without fetching.
	Fresh time.Duration
	// Stale is the retention window; entries older than this are evicted.
	// Values below Fresh are treated as Fresh.
	Stale time.Duration

	// Authenticated marks entries dropped by ClearAuthenticated.
	Authenticated bool

	// ServeStaleOnError makes callers arriving within FailureCooldown after a
	// failed fetch receive the stale entry instead of triggering a new fetch.
	// Callers that awaited the failed attempt still see its error.
	ServeStaleOnError bool
	FailureCooldown   time.Duration
}

func (t TTL) retention() time.Duration {
	if t.Stale < t.Fresh {
		return t.Fresh
	}
	return t.Stale
}

// entry is never mutated after insertion; updates replace it.
type entry struct {
	value     any
	fetchedAt time.Time
	failedAt  time.Time
	ttl       TTL
}

// stamp identifies the cache generation a flight started in. Results of
// flights whose stamp no longer matches are not stored.
type stamp struct {
	epoch   uint64
	version uint64
}

type flight struct {
	waiters       int
	authenticated bool
}

// Cache is a concurrency-safe keyed store of fetched values with freshness
// windows and in-flight request coalescing.
type Cache struct {
	mu sync.Mutex

	entries  map[string]*entry
	versions map[string]uint64
	flights  map[string]*flight
	epoch    uint64

	group singleflight.Group
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]*entry),
		versions: make(map[string]uint64),
		flights:  make(map[string]*flight),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached value for key when fresh. Otherwise it joins
// the in-flight fetch for key, or starts one with fetch. fetch runs detached
// from ctx cancellation so that other waiters are not affected when the
// starting caller goes away; ctx only bounds how long this caller waits.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl TTL, fetch func(context.Context) (T, error)) resource.Resource[T] {
	label := resourceLabel(key)

	if v, stale, ok := c.lookup(key); ok {
		if stale {
			cacheLookupsTotal.WithLabelValues(label, "stale").Inc()
			return typed[T](v, true)
		}
		cacheLookupsTotal.WithLabelValues(label, "hit").Inc()
		return typed[T](v, false)
	}
	cacheLookupsTotal.WithLabelValues(label, "miss").Inc()

	c.join(key, ttl.Authenticated)
	defer c.leave(key)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		st, v, fresh := c.begin(key)
		if fresh {
			return v, nil
		}

		cacheFetchesTotal.WithLabelValues(label).Inc()
		logger.Debug().Str("key", key).Msg("cache: fetching")

		val, err := fetch(detached)
		if err != nil {
			classified := resource.Classify(err)
			cacheFetchFailuresTotal.WithLabelValues(label, classified.Kind.String()).Inc()
			c.markFailed(key, st)
			return nil, classified
		}
		c.put(key, st, val, ttl)
		return val, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return resource.FromError[T](res.Err)
		}
		return typed[T](res.Val, false)
	case <-ctx.Done():
		return resource.FromError[T](ctx.Err())
	}
}

func typed[T any](v any, stale bool) resource.Resource[T] {
	if v == nil {
		var zero T
		return resource.Success(zero)
	}
	t, ok := v.(T)
	if !ok {
		return resource.Failure[T](resource.New(resource.KindUnknown, 0,
			fmt.Errorf("cached value has type %T", v)))
	}
	if stale {
		return resource.Stale(t)
	}
	return resource.Success(t)
}

// lookup returns a servable value: fresh, or stale inside a failure cooldown.
// Entries past their retention window are evicted.
func (c *Cache) lookup(key string) (value any, stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return nil, false, false
	}

	age := c.now().Sub(e.fetchedAt)
	switch {
	case age < e.ttl.Fresh:
		return e.value, false, true
	case age >= e.ttl.retention():
		// Expiry is not an invalidation: a flight already running for key
		// may still store its result.
		delete(c.entries, key)
		cacheEntries.Set(float64(len(c.entries)))
		return nil, false, false
	case e.ttl.ServeStaleOnError && !e.failedAt.IsZero() &&
		c.now().Sub(e.failedAt) < e.ttl.FailureCooldown:
		return e.value, true, true
	default:
		return nil, false, false
	}
}

// begin captures the stamp for a new flight, re-checking freshness in case a
// flight that just finished already stored the value.
func (c *Cache) begin(key string) (stamp, any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < e.ttl.Fresh {
		return stamp{}, e.value, true
	}
	return stamp{epoch: c.epoch, version: c.versions[key]}, nil, false
}

func (c *Cache) put(key string, st stamp, value any, ttl TTL) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(key, st) {
		logger.Debug().Str("key", key).Msg("cache: dropping result of invalidated fetch")
		return
	}
	c.entries[key] = &entry{value: value, fetchedAt: c.now(), ttl: ttl}
	cacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) markFailed(key string, st stamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.currentLocked(key, st) {
		return
	}
	replaced := *e
	replaced.failedAt = c.now()
	c.entries[key] = &replaced
}

func (c *Cache) currentLocked(key string, st stamp) bool {
	return st.epoch == c.epoch && st.version == c.versions[key]
}

func (c *Cache) join(key string, authenticated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		f = &flight{authenticated: authenticated}
		c.flights[key] = f
	}
	f.waiters++
	if f.waiters > 1 {
		cacheCoalescedTotal.WithLabelValues(resourceLabel(key)).Inc()
	}
}

func (c *Cache) leave(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[key]; ok {
		f.waiters--
		if f.waiters <= 0 {
			delete(c.flights, key)
		}
	}
}

// Waiters returns the number of callers currently waiting on key.
func (c *Cache) Waiters(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[key]; ok {
		return f.waiters
	}
	return 0
}

// Len returns the number of stored entries, including stale ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether an entry (fresh or stale) is stored for key.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Invalidate evicts key. An in-flight fetch for key keeps running and new
// callers join it rather than starting a second transport call, but its
// result is not stored.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key)
}

// InvalidateMatching evicts every stored or in-flight key for which match is
// true, with the same in-flight semantics as Invalidate.
func (c *Cache) InvalidateMatching(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if match(key) {
			c.invalidateLocked(key)
			n++
		}
	}
	for key := range c.flights {
		if match(key) {
			c.invalidateLocked(key)
		}
	}
	return n
}

// ClearAuthenticated evicts entries and in-flight fetches that required
// authentication. Callers arriving afterwards never join a detached fetch.
func (c *Cache) ClearAuthenticated() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if e.ttl.Authenticated {
			c.detachLocked(key)
			n++
		}
	}
	for key, f := range c.flights {
		if f.authenticated {
			c.detachLocked(key)
		}
	}
	return n
}

// Clear evicts everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.entries = make(map[string]*entry)
	for key := range c.flights {
		c.group.Forget(key)
	}
	cacheEntries.Set(0)
}

// Sweep evicts entries past their retention window and returns how many
// were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= e.ttl.retention() {
			delete(c.entries, key)
			n++
		}
	}
	cacheEntries.Set(float64(len(c.entries)))
	return n
}

// invalidateLocked drops the entry and outdates any running fetch for key.
func (c *Cache) invalidateLocked(key string) {
	delete(c.entries, key)
	c.versions[key]++
	cacheEntries.Set(float64(len(c.entries)))
}

// detachLocked also stops new callers from joining the running fetch.
func (c *Cache) detachLocked(key string) {
	c.invalidateLocked(key)
	c.group.Forget(key)
}
