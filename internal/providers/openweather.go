package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Sentinel errors classify fetch failures for the sync engine.
var (
	// ErrNetworkUnavailable covers connectivity failures: DNS, refused
	// connections, timeouts.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrServerDown covers a reachable but unhealthy server, including an
	// open circuit breaker.
	ErrServerDown = errors.New("weather server down")
	// ErrInvalidResponse covers payloads that cannot be parsed into a
	// forecast.
	ErrInvalidResponse = errors.New("invalid weather server response")
)

// LocationSummary is the provider's canonical identity for the queried
// place. Setting may differ from the query string the user configured.
type LocationSummary struct {
	Setting   string
	CityName  string
	Latitude  float64
	Longitude float64
}

// DayForecast is one parsed calendar day in the provider's native metric
// units.
type DayForecast struct {
	Date                 time.Time
	ShortDescription     string
	ConditionID          int
	MaxTemp              float64
	MinTemp              float64
	Humidity             float64
	Pressure             float64
	WindSpeed            float64
	WindDirectionDegrees float64
}

// Forecast is a parsed fetch result.
type Forecast struct {
	Location LocationSummary
	Days     []DayForecast
}

// Fetcher is the fetch collaborator contract consumed by the sync engine.
type Fetcher interface {
	Fetch(ctx context.Context, setting string, days int) (*Forecast, error)
}

// OpenWeatherClient fetches daily forecasts from the OpenWeatherMap daily
// endpoint. Outbound calls are rate limited and guarded by a circuit
// breaker so a flapping upstream is not hammered every sync interval.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

func NewOpenWeatherClient(apiKey, baseURL string, logger zerolog.Logger) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		// Free-tier OWM allows 60 calls/minute; one per second with a
		// small burst stays well inside that.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweathermap",
			Timeout: 2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: logger.With().Str("provider", "openweathermap").Logger(),
	}
}

// GetHTTPClient exposes the underlying client so tests can swap the
// transport.
func (c *OpenWeatherClient) GetHTTPClient() *http.Client {
	return c.client
}

type dailyForecastResponse struct {
	Cod  string `json:"cod"`
	City struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
		Speed    float64 `json:"speed"`
		Deg      float64 `json:"deg"`
		Weather  []struct {
			ID          int    `json:"id"`
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// Fetch requests a days-long daily forecast for the given location setting.
func (c *OpenWeatherClient) Fetch(ctx context.Context, setting string, days int) (*Forecast, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	reqURL := fmt.Sprintf("%s/data/2.5/forecast/daily?q=%s&mode=json&units=metric&cnt=%d&appid=%s",
		c.baseURL, url.QueryEscape(setting), days, c.apiKey)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchOnce(ctx, reqURL, setting)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn().Msg("circuit breaker open, skipping fetch")
			return nil, fmt.Errorf("%w: circuit breaker open", ErrServerDown)
		}
		return nil, err
	}

	return result.(*Forecast), nil
}

func (c *OpenWeatherClient) fetchOnce(ctx context.Context, reqURL, querySetting string) (*Forecast, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServerDown, resp.StatusCode)
	}

	var apiResp dailyForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidResponse, err)
	}

	return c.parse(querySetting, apiResp)
}

func (c *OpenWeatherClient) parse(querySetting string, apiResp dailyForecastResponse) (*Forecast, error) {
	if apiResp.Cod != "" && apiResp.Cod != "200" {
		return nil, fmt.Errorf("%w: cod %s", ErrInvalidResponse, apiResp.Cod)
	}
	if len(apiResp.List) == 0 {
		return nil, fmt.Errorf("%w: empty forecast list", ErrInvalidResponse)
	}

	// The provider's city id is the canonical setting; fall back to the
	// query string when the payload carries none.
	canonical := querySetting
	if apiResp.City.ID != 0 {
		canonical = strconv.FormatInt(apiResp.City.ID, 10)
	}

	forecast := &Forecast{
		Location: LocationSummary{
			Setting:   canonical,
			CityName:  apiResp.City.Name,
			Latitude:  apiResp.City.Coord.Lat,
			Longitude: apiResp.City.Coord.Lon,
		},
		Days: make([]DayForecast, 0, len(apiResp.List)),
	}

	for _, day := range apiResp.List {
		desc := ""
		conditionID := 0
		if len(day.Weather) > 0 {
			desc = day.Weather[0].Main
			conditionID = day.Weather[0].ID
		}

		forecast.Days = append(forecast.Days, DayForecast{
			Date:                 time.Unix(day.Dt, 0).UTC(),
			ShortDescription:     desc,
			ConditionID:          conditionID,
			MaxTemp:              day.Temp.Max,
			MinTemp:              day.Temp.Min,
			Humidity:             day.Humidity,
			Pressure:             day.Pressure,
			WindSpeed:            day.Speed,
			WindDirectionDegrees: day.Deg,
		})
	}

	return forecast, nil
}
