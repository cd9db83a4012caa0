package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/zebesta/sunshine/internal/prefs"
)

type Config struct {
	ServiceName   string
	ServerAddress string

	DatabasePath string

	Env         string
	LogLevel    string
	HTTPTimeout int32

	LocationSetting string
	Units           string
	SyncInterval    time.Duration
	ForecastDays    int

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	CacheTTL time.Duration
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVICE_NAME", "sunshine")

	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:3000")
	v.SetDefault("DATABASE_PATH", "sunshine.db")
	v.SetDefault("HTTP_TIMEOUT", 30)
	v.SetDefault("LOCATION_SETTING", "94043")
	v.SetDefault("UNITS", "metric")
	v.SetDefault("SYNC_INTERVAL", 3*time.Hour)
	v.SetDefault("FORECAST_DAYS", 14)
	v.SetDefault("OPEN_WEATHER_BASE_URL", "https://api.openweathermap.org")
	v.SetDefault("CACHE_TTL", 60*time.Second)

	v.AutomaticEnv()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn().Msg("No .env file found, using environment variables only")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	config := &Config{
		ServiceName:        v.GetString("SERVICE_NAME"),
		ServerAddress:      v.GetString("SERVER_ADDRESS"),
		DatabasePath:       v.GetString("DATABASE_PATH"),
		Env:                v.GetString("ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		HTTPTimeout:        v.GetInt32("HTTP_TIMEOUT"),
		LocationSetting:    v.GetString("LOCATION_SETTING"),
		Units:              v.GetString("UNITS"),
		SyncInterval:       v.GetDuration("SYNC_INTERVAL"),
		ForecastDays:       v.GetInt("FORECAST_DAYS"),
		OpenWeatherAPIKey:  v.GetString("OPEN_WEATHER_API_KEY"),
		OpenWeatherBaseURL: v.GetString("OPEN_WEATHER_BASE_URL"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
	}

	return config, nil
}

func (c *Config) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// Preferences builds the read-only preference source handed to the sync
// engine and the query router.
func (c *Config) Preferences() prefs.Source {
	units := prefs.Metric
	if c.Units == string(prefs.Imperial) {
		units = prefs.Imperial
	}

	return prefs.Static{
		LocationSetting: c.LocationSetting,
		Units:           units,
	}
}
