// Package scheduler triggers periodic sync cycles.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/zebesta/sunshine/internal/syncengine"
)

// Scheduler runs one sync cycle immediately at startup and then on a fixed
// interval. Overlap protection comes from the engine itself: a trigger that
// lands while a cycle is running is coalesced, not queued.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    *syncengine.Engine
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
}

func New(engine *syncengine.Engine, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		engine:    engine,
		interval:  interval,
		timeout:   30 * time.Second,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the periodic sync job and starts the underlying
// scheduler asynchronously.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.engine.RunCycle(ctx); err != nil {
			if errors.Is(err, syncengine.ErrSyncInProgress) {
				s.logger.Debug().Msg("sync still running, trigger coalesced")
				return
			}
			s.logger.Warn().Err(err).Msg("scheduled sync failed")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("sync scheduler started")

	return nil
}

// Stop halts the scheduler; an in-flight cycle finishes on its own.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
