// Package query resolves the closed set of logical forecast queries into
// joined reads against the weather store.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/zebesta/sunshine/internal/db/weatherstore"
	"github.com/zebesta/sunshine/internal/prefs"
)

// ErrUnrecognizedResource is returned for a query shape the router does not
// know. This is a programmer error, not a data condition.
var ErrUnrecognizedResource = fmt.Errorf("query: unrecognized resource")

// Kind enumerates the supported logical query shapes.
type Kind int

const (
	kindInvalid Kind = iota
	// ByLocation returns every cached day for a setting.
	ByLocation
	// ByLocationDate returns the single row for one calendar day.
	ByLocationDate
	// ByLocationFrom returns rows from a start date onward, ascending.
	ByLocationFrom
)

// Query is one logical forecast request. Build it with the constructors;
// the zero value is unrecognized by design.
type Query struct {
	Kind    Kind
	Setting string
	Date    time.Time
	From    time.Time
}

func ForLocation(setting string) Query {
	return Query{Kind: ByLocation, Setting: setting}
}

func ForLocationDate(setting string, date time.Time) Query {
	return Query{Kind: ByLocationDate, Setting: setting, Date: date}
}

func ForLocationFrom(setting string, from time.Time) Query {
	return Query{Kind: ByLocationFrom, Setting: setting, From: from}
}

// Router turns logical queries into store reads and applies read-time unit
// conversion per the user's preferences.
type Router struct {
	store weatherstore.Store
	prefs prefs.Source
}

func NewRouter(store weatherstore.Store, prefSource prefs.Source) *Router {
	return &Router{
		store: store,
		prefs: prefSource,
	}
}

// Resolve runs one logical query. Rows come back ascending by date with the
// documented field contract of weatherstore.ForecastRow.
func (r *Router) Resolve(ctx context.Context, q Query) ([]weatherstore.ForecastRow, error) {
	if q.Setting == "" {
		return nil, fmt.Errorf("%w: empty location setting", ErrUnrecognizedResource)
	}

	filter := weatherstore.ForecastFilter{Setting: q.Setting}

	switch q.Kind {
	case ByLocation:
	case ByLocationDate:
		d := weatherstore.NormalizeDate(q.Date)
		filter.Date = &d
	case ByLocationFrom:
		f := weatherstore.NormalizeDate(q.From)
		filter.From = &f
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnrecognizedResource, q.Kind)
	}

	rows, err := r.store.FindForecasts(ctx, filter)
	if err != nil {
		return nil, err
	}

	if r.prefs.PreferredUnits() == prefs.Imperial {
		for i := range rows {
			rows[i].MaxTemp = celsiusToFahrenheit(rows[i].MaxTemp)
			rows[i].MinTemp = celsiusToFahrenheit(rows[i].MinTemp)
			rows[i].WindSpeed = kmhToMph(rows[i].WindSpeed)
		}
	}

	return rows, nil
}

func celsiusToFahrenheit(c float64) float64 {
	return c*1.8 + 32
}

func kmhToMph(kmh float64) float64 {
	return kmh * 0.621371192
}
