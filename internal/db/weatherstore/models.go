package weatherstore

import (
	"time"
)

// Location is a geographic place keyed by the user-facing setting string.
// Rows are never deleted by normal operation; the setting is the durable
// natural key the rest of the system hangs forecasts on.
type Location struct {
	ID        int64   `json:"id" gorm:"primaryKey"`
	Setting   string  `json:"setting" gorm:"uniqueIndex:idx_locations_setting;not null"`
	CityName  string  `json:"city_name" gorm:"column:city_name"`
	Latitude  float64 `json:"latitude" gorm:"column:latitude"`
	Longitude float64 `json:"longitude" gorm:"column:longitude"`
}

func (Location) TableName() string {
	return "locations"
}

// WeatherRecord is one calendar day's forecast for a location. Date is
// normalized to UTC midnight so each day maps to exactly one row per
// location. Temperatures are stored in the provider's native unit (metric);
// conversion happens at read time only.
type WeatherRecord struct {
	ID                   int64     `json:"id" gorm:"primaryKey"`
	LocationID           int64     `json:"location_id" gorm:"column:location_id;uniqueIndex:idx_weather_location_date,priority:1;not null"`
	Date                 time.Time `json:"date" gorm:"column:date;uniqueIndex:idx_weather_location_date,priority:2;not null"`
	ShortDescription     string    `json:"short_description" gorm:"column:short_description"`
	WeatherConditionID   int       `json:"weather_condition_id" gorm:"column:weather_condition_id"`
	MaxTemp              float64   `json:"max_temp" gorm:"column:max_temp"`
	MinTemp              float64   `json:"min_temp" gorm:"column:min_temp"`
	Humidity             float64   `json:"humidity" gorm:"column:humidity"`
	Pressure             float64   `json:"pressure" gorm:"column:pressure"`
	WindSpeed            float64   `json:"wind_speed" gorm:"column:wind_speed"`
	WindDirectionDegrees float64   `json:"wind_direction_degrees" gorm:"column:wind_direction_degrees"`
}

func (WeatherRecord) TableName() string {
	return "weather_records"
}

// ForecastRow is one joined result row. The field order is the documented
// result contract: id, date, shortDescription, maxTemp, minTemp,
// locationSetting, conditionID, latitude, longitude, humidity, windSpeed,
// windDirectionDegrees, pressure.
type ForecastRow struct {
	ID                   int64     `json:"id" gorm:"column:id"`
	Date                 time.Time `json:"date" gorm:"column:date"`
	ShortDescription     string    `json:"short_description" gorm:"column:short_description"`
	MaxTemp              float64   `json:"max_temp" gorm:"column:max_temp"`
	MinTemp              float64   `json:"min_temp" gorm:"column:min_temp"`
	LocationSetting      string    `json:"location_setting" gorm:"column:location_setting"`
	WeatherConditionID   int       `json:"weather_condition_id" gorm:"column:weather_condition_id"`
	Latitude             float64   `json:"latitude" gorm:"column:latitude"`
	Longitude            float64   `json:"longitude" gorm:"column:longitude"`
	Humidity             float64   `json:"humidity" gorm:"column:humidity"`
	WindSpeed            float64   `json:"wind_speed" gorm:"column:wind_speed"`
	WindDirectionDegrees float64   `json:"wind_direction_degrees" gorm:"column:wind_direction_degrees"`
	Pressure             float64   `json:"pressure" gorm:"column:pressure"`
}

// ForecastFilter selects joined forecast rows for one location setting.
// Date and From are mutually exclusive; both nil means every cached day.
type ForecastFilter struct {
	Setting string
	Date    *time.Time
	From    *time.Time
}

// NormalizeDate truncates t to UTC midnight, the canonical day boundary
// used for the (location_id, date) uniqueness constraint.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
