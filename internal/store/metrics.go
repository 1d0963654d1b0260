package store

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_cache_lookups_total",
			Help: "Cache lookups by resource and result (hit, stale, miss)",
		},
		[]string{"resource", "result"},
	)

	cacheCoalescedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_cache_coalesced_total",
			Help: "Callers that joined an in-flight fetch instead of starting one",
		},
		[]string{"resource"},
	)

	cacheFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_cache_fetches_total",
			Help: "Underlying fetch invocations",
		},
		[]string{"resource"},
	)

	cacheFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_cache_fetch_failures_total",
			Help: "Failed fetches by resource and error kind",
		},
		[]string{"resource", "kind"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_cache_entries",
			Help: "Entries currently held by the cache",
		},
	)
)

// resourceLabel is the key prefix up to the first ':'.
func resourceLabel(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
