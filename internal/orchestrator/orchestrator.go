package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
)

// Repository is the data source the orchestrator drives.
type Repository interface {
	ListStations(ctx context.Context) resource.Resource[[]telemetry.Station]
	GetWidgetSnapshot(ctx context.Context, stationID string) resource.Resource[telemetry.WidgetSnapshot]
	GetHistoricalSeries(ctx context.Context, stationID string, from, to time.Time) resource.Resource[telemetry.HistoricalSeries]
	GetChartSeries(ctx context.Context, stationID string, from, to time.Time) resource.Resource[telemetry.ChartSeries]
	InvalidateStation(stationID string) int
	Reset()
}

var _ Repository = (*telemetry.Repository)(nil)

// Config controls cascade time ranges and concurrency.
type Config struct {
	HistoryWindow time.Duration
	ChartWindow   time.Duration
	// Granularity truncates range ends so repeated cascades share cache keys.
	Granularity time.Duration
	// Workers bounds concurrently running fetches across all cascades.
	Workers int64
	Clock   func() time.Time
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 24 * time.Hour
	}
	if c.ChartWindow <= 0 {
		c.ChartWindow = 24 * time.Hour
	}
	if c.Granularity <= 0 {
		c.Granularity = time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 6
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Orchestrator owns the selected station and the cascade of dependent fetches
// it triggers. It is the only writer of its publishers.
type Orchestrator struct {
	repo   Repository
	signal *SessionSignal
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	pool   *semaphore.Weighted
	wg     sync.WaitGroup

	mu         sync.Mutex
	status     Status
	stations   []telemetry.Station
	selection  Selection
	generation *atomic.Uint64

	Status   *Publisher[Status]
	Stations *Publisher[resource.Resource[[]telemetry.Station]]
	Widget   *Publisher[View[telemetry.WidgetSnapshot]]
	History  *Publisher[View[telemetry.HistoricalSeries]]
	Chart    *Publisher[View[telemetry.ChartSeries]]
}

// New creates an idle orchestrator. signal should be the notifier the
// repository was built with.
func New(repo Repository, signal *SessionSignal, cfg Config) *Orchestrator {
	if signal == nil {
		signal = NewSessionSignal()
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		repo:       repo,
		signal:     signal,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		pool:       semaphore.NewWeighted(cfg.Workers),
		status:     StatusIdle,
		generation: atomic.NewUint64(0),
		Status:     NewPublisher(StatusIdle),
		Stations:   NewPublisher(resource.Loading[[]telemetry.Station]()),
		Widget:     NewPublisher(View[telemetry.WidgetSnapshot]{}),
		History:    NewPublisher(View[telemetry.HistoricalSeries]{}),
		Chart:      NewPublisher(View[telemetry.ChartSeries]{}),
	}
}

// SessionExpired delivers one value each time the session-expired signal fires.
func (o *Orchestrator) SessionExpired() <-chan struct{} { return o.signal.C() }

// SessionExpirations publishes the number of session-expired emissions so far.
func (o *Orchestrator) SessionExpirations() *Publisher[int64] { return o.signal.Expirations() }

// Generation returns the current selection generation.
func (o *Orchestrator) Generation() uint64 { return o.generation.Load() }

// CurrentStatus returns the state machine position.
func (o *Orchestrator) CurrentStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Selection returns the current selection.
func (o *Orchestrator) Selection() Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selection
}

// LoadStations fetches the station list. On success the current selection is
// kept if still listed, otherwise the first station is selected; either way the
// dependent cascade starts. The returned error is the classified failure,
// or ErrInvalidTransition while another load or cascade is running.
func (o *Orchestrator) LoadStations(ctx context.Context) error {
	o.mu.Lock()
	switch o.status {
	case StatusLoadingStations, StatusLoadingDependents:
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	gen := o.generation.Load()
	o.setStatusLocked(StatusLoadingStations)
	o.Stations.publish(resource.Loading[[]telemetry.Station]())
	o.mu.Unlock()

	logger.Debug().Msg("orchestrator: loading stations")
	res := o.repo.ListStations(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation.Load() {
		// Reset while loading.
		logger.Debug().Msg("orchestrator: discarding station list from before reset")
		return nil
	}

	o.Stations.publish(res)
	stations, ok := res.Value()
	if !ok {
		o.setStatusLocked(StatusError)
		logger.Warn().Str("kind", res.Err().Kind.String()).Msg("orchestrator: station list failed")
		return res.Err()
	}

	o.stations = stations
	o.setStatusLocked(StatusStationsReady)
	logger.Info().Int("stations", len(stations)).Msg("orchestrator: stations ready")

	switch {
	case o.selection.Selected && o.hasStationLocked(o.selection.StationID):
		// Keep the selection and re-run its cascade.
		o.selectLocked(o.selection.StationID)
	case len(stations) > 0:
		o.selectLocked(stations[0].ID)
	default:
		o.selection = Selection{Generation: o.generation.Load()}
	}
	return nil
}

// SelectStation makes id the selected station and starts its cascade. id
// must be in the last successfully loaded list; otherwise a Validation error
// wrapping ErrStationNotFound is returned and nothing changes.
func (o *Orchestrator) SelectStation(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == StatusLoadingStations {
		return ErrInvalidTransition
	}
	if !o.hasStationLocked(id) {
		logger.Warn().Str("station", id).Msg("orchestrator: station not found")
		return stationNotFound()
	}
	o.selectLocked(id)
	return nil
}

// Refresh re-runs the cascade for the selected station, bypassing its cached
// entries. Results of earlier cascades still in flight are discarded.
func (o *Orchestrator) Refresh() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.selection.Selected {
		logger.Warn().Msg("orchestrator: refresh with nothing selected")
		return ErrNothingSelected
	}
	if o.status == StatusLoadingStations {
		return ErrInvalidTransition
	}

	id := o.selection.StationID
	o.repo.InvalidateStation(id)
	o.selectLocked(id)
	return nil
}

// Reset returns to Idle, forgetting the station list, the selection and all
// cached data.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	gen := o.generation.Inc()
	o.stations = nil
	o.selection = Selection{Generation: gen}
	o.repo.Reset()
	o.signal.rearm()

	o.Stations.publish(resource.Loading[[]telemetry.Station]())
	o.Widget.publish(View[telemetry.WidgetSnapshot]{Generation: gen})
	o.History.publish(View[telemetry.HistoricalSeries]{Generation: gen})
	o.Chart.publish(View[telemetry.ChartSeries]{Generation: gen})
	o.setStatusLocked(StatusIdle)
	logger.Info().Uint64("generation", gen).Msg("orchestrator: reset")
}

// Wait blocks until every started cascade has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Close stops scheduling new fetches and waits for running cascades.
// In-flight transport calls are not interrupted.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) hasStationLocked(id string) bool {
	for _, s := range o.stations {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (o *Orchestrator) setStatusLocked(s Status) {
	if o.status == s {
		return
	}
	logger.Debug().Str("from", o.status.String()).Str("to", s.String()).Msg("orchestrator: status change")
	o.status = s
	o.Status.publish(s)
}

func (o *Orchestrator) selectLocked(id string) {
	gen := o.generation.Inc()
	o.selection = Selection{StationID: id, Selected: true, Generation: gen}
	o.signal.rearm()

	o.Widget.publish(View[telemetry.WidgetSnapshot]{Generation: gen, StationID: id})
	o.History.publish(View[telemetry.HistoricalSeries]{Generation: gen, StationID: id})
	o.Chart.publish(View[telemetry.ChartSeries]{Generation: gen, StationID: id})
	o.setStatusLocked(StatusLoadingDependents)

	logger.Info().Str("station", id).Uint64("generation", gen).Msg("orchestrator: station selected")
	o.startCascade(gen, id)
}

// startCascade issues the widget, history and chart fetches for one
// generation on the worker pool.
func (o *Orchestrator) startCascade(gen uint64, id string) {
	to := o.cfg.Clock().UTC().Truncate(o.cfg.Granularity)
	historyFrom := to.Add(-o.cfg.HistoryWindow)
	chartFrom := to.Add(-o.cfg.ChartWindow)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		var failed atomic.Bool
		var g errgroup.Group

		g.Go(o.dependent(func(ctx context.Context) {
			r := o.repo.GetWidgetSnapshot(ctx, id)
			if r.IsError() {
				failed.Store(true)
			}
			apply(o, gen, id, o.Widget, r)
		}))
		g.Go(o.dependent(func(ctx context.Context) {
			r := o.repo.GetHistoricalSeries(ctx, id, historyFrom, to)
			if r.IsError() {
				failed.Store(true)
			}
			apply(o, gen, id, o.History, r)
		}))
		g.Go(o.dependent(func(ctx context.Context) {
			r := o.repo.GetChartSeries(ctx, id, chartFrom, to)
			if r.IsError() {
				failed.Store(true)
			}
			apply(o, gen, id, o.Chart, r)
		}))

		if err := g.Wait(); err != nil {
			logger.Debug().Err(err).Uint64("generation", gen).Msg("orchestrator: cascade aborted")
			return
		}
		o.finishCascade(gen, failed.Load())
	}()
}

func (o *Orchestrator) dependent(fn func(ctx context.Context)) func() error {
	return func() error {
		if err := o.pool.Acquire(o.ctx, 1); err != nil {
			return err
		}
		defer o.pool.Release(1)
		fn(o.ctx)
		return nil
	}
}

func (o *Orchestrator) finishCascade(gen uint64, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation.Load() {
		return
	}
	if failed {
		o.setStatusLocked(StatusError)
		return
	}
	o.setStatusLocked(StatusDependentsReady)
}

// apply publishes r only if gen is still the live generation.
func apply[T any](o *Orchestrator, gen uint64, id string, p *Publisher[View[T]], r resource.Resource[T]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation.Load() {
		logger.Debug().Str("station", id).Uint64("generation", gen).
			Uint64("current", o.generation.Load()).Msg("orchestrator: discarding superseded result")
		return
	}
	p.publish(View[T]{Generation: gen, StationID: id, Resource: r})
}
