package weatherstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorageError wraps a database failure (constraint violation, I/O error,
// failed transaction). It is always surfaced to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrLocationNotFound is returned when a setting has no location row yet.
var ErrLocationNotFound = errors.New("location not found")

// Store owns all access to the forecast cache database. Writers are
// serialized by the underlying single-connection pool; readers may run
// concurrently with a sync cycle and see either the pre-batch or the
// post-batch state, never a partial bulk upsert.
type Store interface {
	UpsertLocation(ctx context.Context, setting, cityName string, lat, lon float64) (int64, error)
	LocationBySetting(ctx context.Context, setting string) (*Location, error)
	UpsertWeather(ctx context.Context, locationID int64, rec WeatherRecord) (int64, error)
	BulkUpsertWeather(ctx context.Context, locationID int64, recs []WeatherRecord) error
	FindForecasts(ctx context.Context, filter ForecastFilter) ([]ForecastRow, error)
	PruneWeatherBefore(ctx context.Context, locationID int64, cutoff time.Time) (int64, error)
	DeleteAllWeather(ctx context.Context, locationID int64) (int64, error)
	Subscribe() (<-chan ChangeEvent, func())
}

type sqlStore struct {
	db       *gorm.DB
	notifier *notifier
}

func NewStore(db *gorm.DB) Store {
	return &sqlStore{
		db:       db,
		notifier: newNotifier(),
	}
}

// forecastColumns fixes the joined projection and its ordering; consumers
// rely on this contract staying stable per query shape.
const forecastColumns = "weather_records.id AS id, " +
	"weather_records.date AS date, " +
	"weather_records.short_description AS short_description, " +
	"weather_records.max_temp AS max_temp, " +
	"weather_records.min_temp AS min_temp, " +
	"locations.setting AS location_setting, " +
	"weather_records.weather_condition_id AS weather_condition_id, " +
	"locations.latitude AS latitude, " +
	"locations.longitude AS longitude, " +
	"weather_records.humidity AS humidity, " +
	"weather_records.wind_speed AS wind_speed, " +
	"weather_records.wind_direction_degrees AS wind_direction_degrees, " +
	"weather_records.pressure AS pressure"

func (s *sqlStore) UpsertLocation(ctx context.Context, setting, cityName string, lat, lon float64) (int64, error) {
	loc := Location{
		Setting:   setting,
		CityName:  cityName,
		Latitude:  lat,
		Longitude: lon,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting"}},
			DoUpdates: clause.AssignmentColumns([]string{"city_name", "latitude", "longitude"}),
		}).
		Create(&loc).Error
	if err != nil {
		return 0, &StorageError{Op: "upsert location", Err: err}
	}

	// The conflict path does not report the surviving row's id, so read it
	// back by the natural key.
	if loc.ID == 0 {
		existing, err := s.LocationBySetting(ctx, setting)
		if err != nil {
			return 0, err
		}
		loc.ID = existing.ID
	}

	s.notifier.broadcast(ChangeEvent{LocationID: loc.ID, Op: OpLocationUpserted})

	return loc.ID, nil
}

func (s *sqlStore) LocationBySetting(ctx context.Context, setting string) (*Location, error) {
	var loc Location
	err := s.db.WithContext(ctx).Where("setting = ?", setting).First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "find location", Err: err}
	}
	return &loc, nil
}

var weatherConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "location_id"}, {Name: "date"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"short_description",
		"weather_condition_id",
		"max_temp",
		"min_temp",
		"humidity",
		"pressure",
		"wind_speed",
		"wind_direction_degrees",
	}),
}

func (s *sqlStore) UpsertWeather(ctx context.Context, locationID int64, rec WeatherRecord) (int64, error) {
	rec.ID = 0
	rec.LocationID = locationID
	rec.Date = NormalizeDate(rec.Date)

	err := s.db.WithContext(ctx).Clauses(weatherConflict).Create(&rec).Error
	if err != nil {
		return 0, &StorageError{Op: "upsert weather", Err: err}
	}

	s.notifier.broadcast(ChangeEvent{LocationID: locationID, Op: OpWeatherUpserted})

	return rec.ID, nil
}

// BulkUpsertWeather applies a whole sync batch in one transaction so a
// reader never observes a half-written day range.
func (s *sqlStore) BulkUpsertWeather(ctx context.Context, locationID int64, recs []WeatherRecord) error {
	if len(recs) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range recs {
			rec := recs[i]
			rec.ID = 0
			rec.LocationID = locationID
			rec.Date = NormalizeDate(rec.Date)

			if err := tx.Clauses(weatherConflict).Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StorageError{Op: "bulk upsert weather", Err: err}
	}

	s.notifier.broadcast(ChangeEvent{LocationID: locationID, Op: OpWeatherUpserted})

	return nil
}

func (s *sqlStore) FindForecasts(ctx context.Context, filter ForecastFilter) ([]ForecastRow, error) {
	q := s.db.WithContext(ctx).
		Table("weather_records").
		Select(forecastColumns).
		Joins("INNER JOIN locations ON locations.id = weather_records.location_id").
		Where("locations.setting = ?", filter.Setting)

	if filter.Date != nil {
		q = q.Where("weather_records.date = ?", NormalizeDate(*filter.Date))
	}
	if filter.From != nil {
		q = q.Where("weather_records.date >= ?", NormalizeDate(*filter.From))
	}

	var rows []ForecastRow
	if err := q.Order("weather_records.date ASC").Scan(&rows).Error; err != nil {
		return nil, &StorageError{Op: "find forecasts", Err: err}
	}

	return rows, nil
}

func (s *sqlStore) PruneWeatherBefore(ctx context.Context, locationID int64, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("location_id = ? AND date < ?", locationID, NormalizeDate(cutoff)).
		Delete(&WeatherRecord{})
	if res.Error != nil {
		return 0, &StorageError{Op: "prune weather", Err: res.Error}
	}

	if res.RowsAffected > 0 {
		s.notifier.broadcast(ChangeEvent{LocationID: locationID, Op: OpWeatherPruned})
	}

	return res.RowsAffected, nil
}

func (s *sqlStore) DeleteAllWeather(ctx context.Context, locationID int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Delete(&WeatherRecord{})
	if res.Error != nil {
		return 0, &StorageError{Op: "delete weather", Err: res.Error}
	}

	if res.RowsAffected > 0 {
		s.notifier.broadcast(ChangeEvent{LocationID: locationID, Op: OpWeatherWiped})
	}

	return res.RowsAffected, nil
}

func (s *sqlStore) Subscribe() (<-chan ChangeEvent, func()) {
	return s.notifier.subscribe()
}
