package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"posegen/internal/http/handlers"
	httpapi "posegen/internal/http/httpapi"
	"posegen/internal/infra"
	"posegen/internal/providers"
	"posegen/internal/session"
	"posegen/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	svc, err := providers.NewPredictionService(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build prediction service")
	}

	registry, err := session.NewRegistry(session.Options{
		Service:         svc,
		MaxGenerations:  cfg.MaxGenerations,
		PollInterval:    cfg.PollInterval,
		PollTimeout:     cfg.PollTimeout,
		PollConcurrency: cfg.PollConcurrency,
		QualitySuffix:   cfg.PromptSuffix,
		IdleTTL:         cfg.SessionIdleTTL,
		Logger:          infra.Component(&logger, "session"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build session registry")
	}
	registry.Start()

	app := handlers.NewApp(handlers.Options{
		Sessions:       registry,
		Fetcher:        storage.NewFetcher(storage.FetcherOptions{Logger: infra.Component(&logger, "fetcher")}),
		Logger:         infra.Component(&logger, "http"),
		MaxPoseBytes:   cfg.MaxPoseBytes,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          &logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router, &logger)
	if err := server.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}

	go func() {
		logger.Info().
			Int("max_generations", cfg.MaxGenerations).
			Dur("poll_interval", cfg.PollInterval).
			Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to stop scheduler")
	}
	logger.Info().Msg("server stopped")
}
