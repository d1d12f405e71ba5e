package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bibble/internal/bootstrap"
	"bibble/internal/domain"
	"bibble/internal/generation"
	"bibble/internal/http/handlers"
	httpapi "bibble/internal/http/httpapi"
	"bibble/internal/infra"
)

func main() {
	infra.LoadDotEnv()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLoggerWithFile(cfg.AppEnv, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, closeJobs, err := bootstrap.JobRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open job ledger")
	}
	defer closeJobs()

	store, err := bootstrap.FileStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure output directory")
	}

	opts := generation.Options{Jobs: jobs, Store: store, Logger: &logger}
	// Each flow is optional; a missing one answers 503 at request time.
	if client, err := bootstrap.VideoClient(cfg, &logger); err == nil {
		opts.Video = client
	} else if errors.Is(err, domain.ErrConfiguration) {
		logger.Warn().Msg("video generation disabled: AZURE_SORA_ENDPOINT or AZURE_SORA_API_KEY missing")
	}
	if client, err := bootstrap.ImageClient(cfg, &logger); err == nil {
		opts.Images = client
	} else if errors.Is(err, domain.ErrConfiguration) {
		logger.Warn().Msg("image editing disabled: AZURE_IMAGE_ENDPOINT or AZURE_IMAGE_API_KEY missing")
	}
	svc, err := generation.NewService(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation service")
	}

	app := handlers.NewApp(svc, store, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		RateLimitPerMinute: cfg.RateLimitPerMin,
		CORSOrigins:        cfg.CORSOrigins,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("output_dir", store.BasePath()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("background generations did not stop in time")
	}
	logger.Info().Msg("server stopped")
}
