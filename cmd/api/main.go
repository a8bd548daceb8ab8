package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/providers/kling"
	"server/internal/storage"
	"server/internal/store"
	"server/internal/videogen"
)

func main() {
	// .env is optional; real deployments configure the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	var recordStore store.RecordStore
	switch cfg.StoreBackend {
	case infra.StoreBackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		recordStore, err = store.NewPostgres(pool, cfg.RecordTable)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure postgres record store")
		}
	default:
		recordStore, err = store.NewAirtable(store.AirtableOptions{
			APIKey:  cfg.AirtableAPIKey,
			BaseID:  cfg.AirtableBaseID,
			Table:   cfg.AirtableTable,
			BaseURL: cfg.AirtableBaseURL,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure airtable record store")
		}
	}

	genClient, err := kling.NewClient(kling.Options{
		APIKey:         cfg.KlingAPIKey,
		BaseURL:        cfg.KlingBaseURL,
		RequestTimeout: cfg.GenRequestTimeout,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure kling client")
	}

	cache, err := storage.NewArtifactCache(cfg.ArtifactDir)
	if err != nil {
		logger.Warn().Err(err).Msg("artifact cache disabled")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip lookups disabled")
	}
	if resolver != nil {
		defer resolver.Close()
	}

	runner, err := videogen.NewRunner(videogen.RunnerOptions{
		Store:        recordStore,
		Generator:    genClient,
		Cache:        cache,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure lifecycle runner")
	}

	app := handlers.NewApp(logger, runner)
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		CORSOrigins:   cfg.CORSOrigins,
		CountryLookup: lookup,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
