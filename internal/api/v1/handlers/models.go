package handlers

import "time"

// ForecastDay mirrors the store's joined row contract; the field order is
// stable per query shape so consumers can rely on it.
type ForecastDay struct {
	ID                   int64     `json:"id"`
	Date                 time.Time `json:"date"`
	ShortDescription     string    `json:"short_description"`
	MaxTemp              float64   `json:"max_temp"`
	MinTemp              float64   `json:"min_temp"`
	LocationSetting      string    `json:"location_setting"`
	WeatherConditionID   int       `json:"weather_condition_id"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	Humidity             float64   `json:"humidity"`
	WindSpeed            float64   `json:"wind_speed"`
	WindDirectionDegrees float64   `json:"wind_direction_degrees"`
	Pressure             float64   `json:"pressure"`
}

// ForecastResponse always carries the location status so an empty day list
// together with a non-OK status reads as an explainable empty state, not an
// error.
type ForecastResponse struct {
	LocationSetting string        `json:"location_setting"`
	Status          string        `json:"status"`
	Days            []ForecastDay `json:"days"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type SyncResponse struct {
	Started bool `json:"started"`
}

type Error struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
	Title  string `json:"title"`
}

type ErrorResponse struct {
	Errors []Error `json:"errors"`
}
