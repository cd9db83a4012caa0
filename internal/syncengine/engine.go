// Package syncengine runs the fetch, parse, upsert, prune cycle that keeps
// the local forecast cache current.
package syncengine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zebesta/sunshine/internal/db/weatherstore"
	"github.com/zebesta/sunshine/internal/prefs"
	"github.com/zebesta/sunshine/internal/providers"
)

// ErrSyncInProgress is returned when a cycle is requested while another is
// still running; the request is coalesced, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

const defaultCycleTimeout = 30 * time.Second

// Engine drives one sync cycle at a time: fetch the remote forecast, upsert
// the location, bulk upsert the day records in one transaction, prune past
// days, update the location status. A failed cycle leaves prior cached data
// intact and waits for the next trigger.
type Engine struct {
	store   weatherstore.Store
	fetcher providers.Fetcher
	prefs   prefs.Source
	days    int
	logger  zerolog.Logger

	running sync.Mutex
	status  atomic.Int32
}

func NewEngine(store weatherstore.Store, fetcher providers.Fetcher, prefSource prefs.Source, days int, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		fetcher: fetcher,
		prefs:   prefSource,
		days:    days,
		logger:  logger.With().Str("component", "syncengine").Logger(),
	}
}

// Status reports the outcome of the most recent cycle.
func (e *Engine) Status() LocationStatus {
	return LocationStatus(e.status.Load())
}

func (e *Engine) setStatus(s LocationStatus) {
	e.status.Store(int32(s))
}

// SyncNow triggers a cycle in the background and returns immediately. It
// reports false when a cycle was already in flight and the request was
// coalesced. Safe to call from any consumer context.
func (e *Engine) SyncNow() bool {
	if !e.running.TryLock() {
		return false
	}

	go func() {
		defer e.running.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), defaultCycleTimeout)
		defer cancel()

		if err := e.runCycle(ctx); err != nil {
			e.logger.Error().Err(err).Msg("sync cycle failed")
		}
	}()

	return true
}

// RunCycle runs one cycle synchronously, used by the scheduler and tests.
// Returns ErrSyncInProgress when another cycle holds the lock.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.running.TryLock() {
		return ErrSyncInProgress
	}
	defer e.running.Unlock()

	return e.runCycle(ctx)
}

func (e *Engine) runCycle(ctx context.Context) error {
	setting := e.prefs.PreferredLocationSetting()
	log := e.logger.With().Str("setting", setting).Logger()

	log.Debug().Str("phase", "fetching").Int("days", e.days).Msg("sync cycle started")
	forecast, err := e.fetcher.Fetch(ctx, setting, e.days)
	if err != nil {
		e.setStatus(classifyFetchError(err))
		log.Warn().Err(err).Stringer("status", e.Status()).Msg("fetch failed, cycle aborted")
		return err
	}

	log.Debug().Str("phase", "upserting").Int("days", len(forecast.Days)).Msg("applying forecast")
	locationID, err := e.store.UpsertLocation(ctx,
		forecast.Location.Setting,
		forecast.Location.CityName,
		forecast.Location.Latitude,
		forecast.Location.Longitude,
	)
	if err != nil {
		log.Error().Err(err).Msg("location upsert failed, cycle aborted")
		return err
	}

	records := make([]weatherstore.WeatherRecord, 0, len(forecast.Days))
	for _, day := range forecast.Days {
		records = append(records, weatherstore.WeatherRecord{
			Date:                 day.Date,
			ShortDescription:     day.ShortDescription,
			WeatherConditionID:   day.ConditionID,
			MaxTemp:              day.MaxTemp,
			MinTemp:              day.MinTemp,
			Humidity:             day.Humidity,
			Pressure:             day.Pressure,
			WindSpeed:            day.WindSpeed,
			WindDirectionDegrees: day.WindDirectionDegrees,
		})
	}

	if err := e.store.BulkUpsertWeather(ctx, locationID, records); err != nil {
		log.Error().Err(err).Msg("weather upsert failed, cycle aborted")
		return err
	}

	log.Debug().Str("phase", "pruning").Msg("dropping past days")
	today := weatherstore.NormalizeDate(time.Now())
	pruned, err := e.store.PruneWeatherBefore(ctx, locationID, today)
	if err != nil {
		log.Error().Err(err).Msg("prune failed, cycle aborted")
		return err
	}

	e.setStatus(StatusOK)
	log.Info().
		Int64("location_id", locationID).
		Int("upserted", len(records)).
		Int64("pruned", pruned).
		Msg("sync cycle completed")

	return nil
}

func classifyFetchError(err error) LocationStatus {
	switch {
	case errors.Is(err, providers.ErrNetworkUnavailable):
		return StatusNoNetwork
	case errors.Is(err, providers.ErrInvalidResponse):
		return StatusServerInvalid
	default:
		// ErrServerDown and anything unclassified.
		return StatusServerDown
	}
}
