package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/retry"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/store"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
)

// Prefix of every environment variable, e.g. TELEMETRY_API_BASE_URL.
const Prefix = "TELEMETRY"

// API configures the remote station API.
type API struct {
	BaseURL string        `envconfig:"BASE_URL" default:"http://localhost:9000/api"`
	Token   string        `envconfig:"TOKEN"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// Cache holds fresh and stale windows per resource. Both count from the fetch;
// stale bounds how long an entry is retained.
type Cache struct {
	StationsFresh     time.Duration `envconfig:"STATIONS_FRESH" default:"10m"`
	StationsStale     time.Duration `envconfig:"STATIONS_STALE" default:"1h"`
	WidgetFresh       time.Duration `envconfig:"WIDGET_FRESH" default:"30s"`
	WidgetStale       time.Duration `envconfig:"WIDGET_STALE" default:"5m"`
	HistoryFresh      time.Duration `envconfig:"HISTORY_FRESH" default:"5m"`
	HistoryStale      time.Duration `envconfig:"HISTORY_STALE" default:"30m"`
	ChartFresh        time.Duration `envconfig:"CHART_FRESH" default:"5m"`
	ChartStale        time.Duration `envconfig:"CHART_STALE" default:"30m"`
	ServeStaleOnError bool          `envconfig:"SERVE_STALE_ON_ERROR" default:"false"`
	FailureCooldown   time.Duration `envconfig:"FAILURE_COOLDOWN" default:"0s"`
}

// Retry configures transport retries.
type Retry struct {
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	Base        time.Duration `envconfig:"BASE" default:"500ms"`
	MaxDelay    time.Duration `envconfig:"MAX_DELAY" default:"5s"`
}

// Breaker configures the per-request circuit breakers. Zero failures, the
// default, disables them.
type Breaker struct {
	Failures    uint32        `envconfig:"FAILURES" default:"0"`
	OpenTimeout time.Duration `envconfig:"OPEN_TIMEOUT" default:"30s"`
}

// Sync configures the orchestrator and its background jobs.
type Sync struct {
	Workers          int64         `envconfig:"WORKERS" default:"6"`
	HistoryWindow    time.Duration `envconfig:"HISTORY_WINDOW" default:"24h"`
	ChartWindow      time.Duration `envconfig:"CHART_WINDOW" default:"24h"`
	RangeGranularity time.Duration `envconfig:"RANGE_GRANULARITY" default:"1m"`
	RefreshInterval  time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m"`
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"10m"`
}

// HTTP configures the presentation API.
type HTTP struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	// WriteTimeout also bounds event streams; zero leaves them open.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"0s"`
}

// AppConfig is the full application configuration.
type AppConfig struct {
	API     API           `envconfig:"API"`
	Cache   Cache         `envconfig:"CACHE"`
	Retry   Retry         `envconfig:"RETRY"`
	Breaker Breaker       `envconfig:"BREAKER"`
	Sync    Sync          `envconfig:"SYNC"`
	HTTP    HTTP          `envconfig:"HTTP"`
	Log     logger.Config `envconfig:"LOG"`
}

// Load reads envFiles (a missing file is not an error) and then the
// environment.
func Load(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		logger.Info().Err(err).Msg("config: no .env file loaded, using environment")
	}

	var cfg AppConfig
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *AppConfig) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base url %q must be absolute", c.API.BaseURL))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.MaxDelay < c.Retry.Base {
		errs = append(errs, fmt.Errorf("retry max delay %s is below base %s", c.Retry.MaxDelay, c.Retry.Base))
	}
	if c.Sync.Workers < 1 {
		errs = append(errs, fmt.Errorf("sync workers must be at least 1, got %d", c.Sync.Workers))
	}

	windows := map[string][2]time.Duration{
		"stations": {c.Cache.StationsFresh, c.Cache.StationsStale},
		"widget":   {c.Cache.WidgetFresh, c.Cache.WidgetStale},
		"history":  {c.Cache.HistoryFresh, c.Cache.HistoryStale},
		"chart":    {c.Cache.ChartFresh, c.Cache.ChartStale},
	}
	for name, w := range windows {
		if w[0] <= 0 {
			errs = append(errs, fmt.Errorf("cache %s fresh window must be positive", name))
		}
		if w[1] < w[0] {
			errs = append(errs, fmt.Errorf("cache %s stale window %s is below fresh window %s", name, w[1], w[0]))
		}
	}

	return errors.Join(errs...)
}

// TTLs converts the cache settings for telemetry.WithTTLs.
func (c *AppConfig) TTLs() telemetry.TTLConfig {
	ttl := func(fresh, stale time.Duration) store.TTL {
		return store.TTL{
			Fresh:             fresh,
			Stale:             stale,
			ServeStaleOnError: c.Cache.ServeStaleOnError,
			FailureCooldown:   c.Cache.FailureCooldown,
		}
	}
	return telemetry.TTLConfig{
		Stations: ttl(c.Cache.StationsFresh, c.Cache.StationsStale),
		Widget:   ttl(c.Cache.WidgetFresh, c.Cache.WidgetStale),
		History:  ttl(c.Cache.HistoryFresh, c.Cache.HistoryStale),
		Chart:    ttl(c.Cache.ChartFresh, c.Cache.ChartStale),
	}
}

// RetryPolicy converts the retry settings.
func (c *AppConfig) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.Retry.MaxAttempts, Base: c.Retry.Base, MaxDelay: c.Retry.MaxDelay}
}

// BreakerConfig converts the breaker settings.
func (c *AppConfig) BreakerConfig() telemetry.BreakerConfig {
	return telemetry.BreakerConfig{ConsecutiveFailures: c.Breaker.Failures, OpenTimeout: c.Breaker.OpenTimeout}
}

// Orchestrator converts the sync settings.
func (c *AppConfig) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		HistoryWindow: c.Sync.HistoryWindow,
		ChartWindow:   c.Sync.ChartWindow,
		Granularity:   c.Sync.RangeGranularity,
		Workers:       c.Sync.Workers,
	}
}
