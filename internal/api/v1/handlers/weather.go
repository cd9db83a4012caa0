package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zebesta/sunshine/internal/inmemorycache"
	"github.com/zebesta/sunshine/internal/prefs"
	"github.com/zebesta/sunshine/internal/query"
	"github.com/zebesta/sunshine/internal/syncengine"
)

const dateLayout = "2006-01-02"

// SyncTrigger is the slice of the sync engine the handlers need.
type SyncTrigger interface {
	SyncNow() bool
	Status() syncengine.LocationStatus
}

type ForecastHandler struct {
	router   *query.Router
	trigger  SyncTrigger
	prefs    prefs.Source
	cache    inmemorycache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

func NewForecastHandler(
	router *query.Router,
	trigger SyncTrigger,
	prefSource prefs.Source,
	cache inmemorycache.Cache,
	cacheTTL time.Duration,
	timeout time.Duration,
) *ForecastHandler {
	return &ForecastHandler{
		router:   router,
		trigger:  trigger,
		prefs:    prefSource,
		cache:    cache,
		cacheTTL: cacheTTL,
		timeout:  timeout,
	}
}

func (h *ForecastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/forecast":
		h.GetForecast(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/status":
		h.GetStatus(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/sync":
		h.TriggerSync(w, r)
	default:
		respondWithError(w, http.StatusNotFound, "not found")
	}
}

// GetForecast serves the three logical query shapes: ?date= for one day,
// ?from= for an open-ended range, ?all=1 for every cached day, and the
// default of today onward.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	setting := h.prefs.PreferredLocationSetting()

	q, err := h.queryFromParams(setting, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("%d|%s|%s|%s", q.Kind, q.Setting,
		q.Date.Format(dateLayout), q.From.Format(dateLayout))
	if cached, ok := h.cache.Get(cacheKey); ok {
		respondWithRawJSON(w, http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rows, err := h.router.Resolve(ctx, q)
	if err != nil {
		if errors.Is(err, query.ErrUnrecognizedResource) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("setting", setting).Msg("forecast query failed")
		respondWithError(w, http.StatusInternalServerError, "failed to query forecasts")
		return
	}

	resp := ForecastResponse{
		LocationSetting: setting,
		Status:          h.trigger.Status().String(),
		Days:            make([]ForecastDay, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Days = append(resp.Days, ForecastDay(row))
	}

	body, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		respondWithError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	h.cache.Set(cacheKey, body, h.cacheTTL)
	respondWithRawJSON(w, http.StatusOK, body)
}

func (h *ForecastHandler) queryFromParams(setting string, r *http.Request) (query.Query, error) {
	params := r.URL.Query()

	if dateStr := params.Get("date"); dateStr != "" {
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return query.Query{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
		}
		return query.ForLocationDate(setting, date), nil
	}

	if fromStr := params.Get("from"); fromStr != "" {
		from, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return query.Query{}, fmt.Errorf("invalid from date %q, want YYYY-MM-DD", fromStr)
		}
		return query.ForLocationFrom(setting, from), nil
	}

	if params.Get("all") != "" {
		return query.ForLocation(setting), nil
	}

	return query.ForLocationFrom(setting, time.Now()), nil
}

func (h *ForecastHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, StatusResponse{
		Status: h.trigger.Status().String(),
	})
}

// TriggerSync is idempotent: a request that lands while a cycle is running
// is coalesced and reported as not started.
func (h *ForecastHandler) TriggerSync(w http.ResponseWriter, _ *http.Request) {
	started := h.trigger.SyncNow()
	respondWithJSON(w, http.StatusAccepted, SyncResponse{Started: started})
}
