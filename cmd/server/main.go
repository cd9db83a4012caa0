package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zebesta/sunshine/config"
	"github.com/zebesta/sunshine/internal/api/v1/handlers"
	"github.com/zebesta/sunshine/internal/db/weatherstore"
	"github.com/zebesta/sunshine/internal/inmemorycache"
	"github.com/zebesta/sunshine/internal/providers"
	"github.com/zebesta/sunshine/internal/query"
	"github.com/zebesta/sunshine/internal/scheduler"
	"github.com/zebesta/sunshine/internal/syncengine"
)

func main() {
	conf, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logLevel, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Str("service_name", conf.ServiceName).
		Timestamp().
		Logger()

	ctx, mainCtxStop := context.WithCancel(context.Background())

	db, dbErr := weatherstore.Open(conf.DatabasePath)
	if dbErr != nil {
		logger.Fatal().Err(dbErr).Str("path", conf.DatabasePath).Msg("failed to open database")
	}

	store := weatherstore.NewStore(db)
	preferences := conf.Preferences()

	fetcher := providers.NewOpenWeatherClient(conf.OpenWeatherAPIKey, conf.OpenWeatherBaseURL, logger)

	engine := syncengine.NewEngine(store, fetcher, preferences, conf.ForecastDays, logger)

	syncScheduler := scheduler.New(engine, conf.SyncInterval, logger)
	if err := syncScheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sync scheduler")
	}

	cache := inmemorycache.NewInMemoryCacheProvider(time.Minute)
	go flushCacheOnChange(ctx, store, cache)

	router := query.NewRouter(store, preferences)
	handler := handlers.NewForecastHandler(router, engine, preferences, cache, conf.CacheTTL, conf.HTTPTimeoutDuration())

	httpServer := &http.Server{
		Addr:              conf.ServerAddress,
		Handler:           handler,
		ReadHeaderTimeout: conf.HTTPTimeoutDuration(),
	}

	handleSignals(ctx, mainCtxStop, func() {
		syncScheduler.Stop()
		shutdownErr := httpServer.Shutdown(ctx)
		if shutdownErr != nil {
			log.Fatal().Err(shutdownErr).Msg("server shutdown failed")
		}
	})

	logger.Info().Str("address", conf.ServerAddress).Msg("started server")

	serverErr := httpServer.ListenAndServe()
	if serverErr != nil {
		log.Err(serverErr).Msg("server stopped")
	}
	<-ctx.Done()
}

// flushCacheOnChange drops cached responses whenever the store commits a
// write, so consumers observe fresh sync results immediately.
func flushCacheOnChange(ctx context.Context, store weatherstore.Store, cache inmemorycache.Cache) {
	events, cancel := store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			cache.Flush()
		}
	}
}

func handleSignals(ctx context.Context, cancelCtx context.CancelFunc, callback func()) {
	sig := make(chan os.Signal, 1)

	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	const shutdownDuration = 30 * time.Second

	go func() {
		<-sig

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownDuration)

		go func() {
			<-shutdownCtx.Done()

			if shutdownCtx.Err() == context.DeadlineExceeded {
				panic("graceful shutdown timed out.. forcing exit.")
			}
		}()

		callback()

		cancel()
		cancelCtx()
	}()
}
