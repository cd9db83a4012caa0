// Package prefs exposes the user preferences this service reads but never
// writes: the selected location setting and the display unit system.
package prefs

// Units selects the unit system applied at read time. Stored values are
// always in the provider's native metric units.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// Source is a read-only view of the user's preferences.
type Source interface {
	PreferredLocationSetting() string
	PreferredUnits() Units
}

// Static is a fixed Source, built from config at startup and handy in tests.
type Static struct {
	LocationSetting string
	Units           Units
}

func (s Static) PreferredLocationSetting() string {
	return s.LocationSetting
}

func (s Static) PreferredUnits() Units {
	if s.Units == Imperial {
		return Imperial
	}
	return Metric
}
