package scheduler

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
)

// Refresher re-runs the cascade for the selected station.
type Refresher interface {
	Refresh() error
}

// Sweeper evicts expired cache entries.
type Sweeper interface {
	Sweep() int
}

// Scheduler periodically refreshes the selected station and sweeps the cache.
type Scheduler struct {
	scheduler       *gocron.Scheduler
	refresher       Refresher
	sweeper         Sweeper
	refreshInterval time.Duration
	sweepInterval   time.Duration
}

// New creates a new Scheduler. A zero interval disables that job.
func New(refresher Refresher, sweeper Sweeper, refreshInterval, sweepInterval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:       s,
		refresher:       refresher,
		sweeper:         sweeper,
		refreshInterval: refreshInterval,
		sweepInterval:   sweepInterval,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.refreshInterval > 0 && s.refresher != nil {
		// The first run is skipped; the initial load already starts a cascade.
		_, err := s.scheduler.Every(s.refreshInterval).WaitForSchedule().Tag("refresh").Do(s.refresh)
		if err != nil {
			return err
		}
	}
	if s.sweepInterval > 0 && s.sweeper != nil {
		_, err := s.scheduler.Every(s.sweepInterval).WaitForSchedule().Tag("sweep").Do(s.sweep)
		if err != nil {
			return err
		}
	}
	if s.scheduler.Len() == 0 {
		logger.Info().Msg("scheduler: nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) refresh() {
	err := s.refresher.Refresh()
	switch {
	case err == nil:
		logger.Debug().Msg("scheduler: refresh started")
	case errors.Is(err, orchestrator.ErrNothingSelected), errors.Is(err, orchestrator.ErrInvalidTransition):
		logger.Debug().Err(err).Msg("scheduler: refresh skipped")
	default:
		logger.Warn().Err(err).Msg("scheduler: refresh failed")
	}
}

func (s *Scheduler) sweep() {
	if n := s.sweeper.Sweep(); n > 0 {
		logger.Debug().Int("evicted", n).Msg("scheduler: cache swept")
	}
}
