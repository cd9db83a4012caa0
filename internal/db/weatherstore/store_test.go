package weatherstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/zebesta/sunshine/internal/db/weatherstore"
)

type WeatherStoreSuite struct {
	suite.Suite
	store weatherstore.Store
	ctx   context.Context
}

func (s *WeatherStoreSuite) SetupTest() {
	db, err := weatherstore.Open(filepath.Join(s.T().TempDir(), "sunshine.db"))
	s.Require().NoError(err)

	s.store = weatherstore.NewStore(db)
	s.ctx = context.Background()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *WeatherStoreSuite) TestUpsertLocation() {
	s.Run("same setting twice yields the same id", func() {
		id1, err := s.store.UpsertLocation(s.ctx, "99705", "North Pole", 64.7511, -147.3494)
		s.Require().NoError(err)
		s.Require().NotZero(id1)

		id2, err := s.store.UpsertLocation(s.ctx, "99705", "North Pole", 64.7511, -147.3494)
		s.Require().NoError(err)
		s.Require().Equal(id1, id2)
	})

	s.Run("conflicting insert updates city and coordinates in place", func() {
		id1, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View", 37.4, -122.1)
		s.Require().NoError(err)

		id2, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View CA", 37.42, -122.08)
		s.Require().NoError(err)
		s.Require().Equal(id1, id2)

		loc, err := s.store.LocationBySetting(s.ctx, "94043")
		s.Require().NoError(err)
		s.Require().Equal("Mountain View CA", loc.CityName)
		s.Require().InDelta(37.42, loc.Latitude, 1e-9)
		s.Require().InDelta(-122.08, loc.Longitude, 1e-9)
	})

	s.Run("distinct settings get distinct rows", func() {
		id1, err := s.store.UpsertLocation(s.ctx, "10001", "New York", 40.75, -73.99)
		s.Require().NoError(err)

		id2, err := s.store.UpsertLocation(s.ctx, "60601", "Chicago", 41.88, -87.62)
		s.Require().NoError(err)
		s.Require().NotEqual(id1, id2)
	})
}

func (s *WeatherStoreSuite) TestLocationBySettingNotFound() {
	_, err := s.store.LocationBySetting(s.ctx, "nowhere")
	s.Require().ErrorIs(err, weatherstore.ErrLocationNotFound)
}

func (s *WeatherStoreSuite) TestUpsertWeatherOverwrites() {
	locID, err := s.store.UpsertLocation(s.ctx, "99705", "North Pole", 64.75, -147.35)
	s.Require().NoError(err)

	target := day(2024, time.January, 10)

	_, err = s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{
		Date:             target,
		ShortDescription: "Snow",
		MaxTemp:          10,
		MinTemp:          2,
	})
	s.Require().NoError(err)

	_, err = s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{
		Date:             target,
		ShortDescription: "Clear",
		MaxTemp:          12,
		MinTemp:          3,
	})
	s.Require().NoError(err)

	rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{
		Setting: "99705",
		Date:    &target,
	})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Require().Equal("Clear", rows[0].ShortDescription)
	s.Require().InDelta(12, rows[0].MaxTemp, 1e-9)
}

func (s *WeatherStoreSuite) TestUpsertWeatherNormalizesDate() {
	locID, err := s.store.UpsertLocation(s.ctx, "99705", "North Pole", 64.75, -147.35)
	s.Require().NoError(err)

	afternoon := time.Date(2024, time.January, 10, 15, 30, 12, 0, time.UTC)
	midnight := day(2024, time.January, 10)

	_, err = s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{Date: afternoon, MaxTemp: 5})
	s.Require().NoError(err)

	_, err = s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{Date: midnight, MaxTemp: 7})
	s.Require().NoError(err)

	rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "99705"})
	s.Require().NoError(err)
	s.Require().Len(rows, 1, "same calendar day must map to one row")
	s.Require().InDelta(7, rows[0].MaxTemp, 1e-9)
}

func (s *WeatherStoreSuite) TestBulkUpsertWeather() {
	locID, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View", 37.4, -122.1)
	s.Require().NoError(err)

	recs := make([]weatherstore.WeatherRecord, 0, 7)
	for i := 0; i < 7; i++ {
		recs = append(recs, weatherstore.WeatherRecord{
			Date:             day(2024, time.March, 1+i),
			ShortDescription: "Clouds",
			MaxTemp:          float64(10 + i),
			MinTemp:          float64(i),
		})
	}

	s.Require().NoError(s.store.BulkUpsertWeather(s.ctx, locID, recs))

	rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "94043"})
	s.Require().NoError(err)
	s.Require().Len(rows, 7)

	// A second batch for the same days overwrites instead of duplicating.
	for i := range recs {
		recs[i].MaxTemp += 100
	}
	s.Require().NoError(s.store.BulkUpsertWeather(s.ctx, locID, recs))

	rows, err = s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "94043"})
	s.Require().NoError(err)
	s.Require().Len(rows, 7)
	s.Require().InDelta(110, rows[0].MaxTemp, 1e-9)
}

func (s *WeatherStoreSuite) TestFindForecasts() {
	locID, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View", 37.4, -122.1)
	s.Require().NoError(err)

	otherID, err := s.store.UpsertLocation(s.ctx, "10001", "New York", 40.75, -73.99)
	s.Require().NoError(err)

	dates := []time.Time{
		day(2024, time.June, 3),
		day(2024, time.June, 1),
		day(2024, time.June, 2),
	}
	for i, d := range dates {
		_, err := s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{
			Date:    d,
			MaxTemp: float64(20 + i),
		})
		s.Require().NoError(err)
	}
	_, err = s.store.UpsertWeather(s.ctx, otherID, weatherstore.WeatherRecord{
		Date:    day(2024, time.June, 1),
		MaxTemp: 99,
	})
	s.Require().NoError(err)

	s.Run("rows are joined with location attributes and sorted by date", func() {
		rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "94043"})
		s.Require().NoError(err)
		s.Require().Len(rows, 3)

		s.Require().WithinDuration(day(2024, time.June, 1), rows[0].Date, time.Second)
		s.Require().WithinDuration(day(2024, time.June, 2), rows[1].Date, time.Second)
		s.Require().WithinDuration(day(2024, time.June, 3), rows[2].Date, time.Second)

		s.Require().Equal("94043", rows[0].LocationSetting)
		s.Require().InDelta(37.4, rows[0].Latitude, 1e-9)
		s.Require().InDelta(-122.1, rows[0].Longitude, 1e-9)
	})

	s.Run("from filter is inclusive and drops earlier days", func() {
		from := day(2024, time.June, 2)
		rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{
			Setting: "94043",
			From:    &from,
		})
		s.Require().NoError(err)
		s.Require().Len(rows, 2)
		s.Require().WithinDuration(day(2024, time.June, 2), rows[0].Date, time.Second)
	})

	s.Run("unknown setting yields zero rows, not an error", func() {
		rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "00000"})
		s.Require().NoError(err)
		s.Require().Empty(rows)
	})
}

func (s *WeatherStoreSuite) TestPruneWeatherBefore() {
	locID, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View", 37.4, -122.1)
	s.Require().NoError(err)

	today := day(2024, time.June, 10)
	for _, d := range []time.Time{
		today.AddDate(0, 0, -2),
		today.AddDate(0, 0, -1),
		today,
		today.AddDate(0, 0, 1),
	} {
		_, err := s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{Date: d})
		s.Require().NoError(err)
	}

	deleted, err := s.store.PruneWeatherBefore(s.ctx, locID, today)
	s.Require().NoError(err)
	s.Require().EqualValues(2, deleted)

	rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "94043"})
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Require().WithinDuration(today, rows[0].Date, time.Second, "rows for the cutoff day survive")
}

func (s *WeatherStoreSuite) TestDeleteAllWeather() {
	locID, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View", 37.4, -122.1)
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		_, err := s.store.UpsertWeather(s.ctx, locID, weatherstore.WeatherRecord{
			Date: day(2024, time.June, 1+i),
		})
		s.Require().NoError(err)
	}

	deleted, err := s.store.DeleteAllWeather(s.ctx, locID)
	s.Require().NoError(err)
	s.Require().EqualValues(3, deleted)

	rows, err := s.store.FindForecasts(s.ctx, weatherstore.ForecastFilter{Setting: "94043"})
	s.Require().NoError(err)
	s.Require().Empty(rows)

	// The location itself stays; only its cached weather is gone.
	_, err = s.store.LocationBySetting(s.ctx, "94043")
	s.Require().NoError(err)
}

func (s *WeatherStoreSuite) TestChangeNotifications() {
	events, cancel := s.store.Subscribe()
	defer cancel()

	locID, err := s.store.UpsertLocation(s.ctx, "94043", "Mountain View", 37.4, -122.1)
	s.Require().NoError(err)

	ev := s.nextEvent(events)
	s.Require().Equal(weatherstore.OpLocationUpserted, ev.Op)
	s.Require().Equal(locID, ev.LocationID)

	s.Require().NoError(s.store.BulkUpsertWeather(s.ctx, locID, []weatherstore.WeatherRecord{
		{Date: day(2024, time.June, 1)},
	}))
	ev = s.nextEvent(events)
	s.Require().Equal(weatherstore.OpWeatherUpserted, ev.Op)

	_, err = s.store.DeleteAllWeather(s.ctx, locID)
	s.Require().NoError(err)
	ev = s.nextEvent(events)
	s.Require().Equal(weatherstore.OpWeatherWiped, ev.Op)

	// Pruning an empty table deletes nothing and stays silent.
	_, err = s.store.PruneWeatherBefore(s.ctx, locID, day(2024, time.June, 10))
	s.Require().NoError(err)
	select {
	case ev := <-events:
		s.Failf("unexpected event", "got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *WeatherStoreSuite) nextEvent(events <-chan weatherstore.ChangeEvent) weatherstore.ChangeEvent {
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for change event")
		return weatherstore.ChangeEvent{}
	}
}

func TestWeatherStoreSuite(t *testing.T) {
	suite.Run(t, new(WeatherStoreSuite))
}
