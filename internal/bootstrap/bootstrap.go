// Package bootstrap builds the clients and stores the binaries share from a
// loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"bibble/internal/adapter/repo"
	"bibble/internal/domain"
	"bibble/internal/infra"
	"bibble/internal/providers/image"
	"bibble/internal/providers/video"
	"bibble/internal/storage"
)

// VideoClient builds the Sora client from cfg.
func VideoClient(cfg *infra.Config, logger *infra.Logger) (*video.Client, error) {
	return video.NewClient(video.Options{
		Endpoint:          cfg.Sora.Endpoint,
		APIKey:            cfg.Sora.APIKey,
		APIVersion:        cfg.Sora.APIVersion,
		Model:             cfg.Sora.Model,
		PollInterval:      cfg.Sora.PollInterval,
		MaxWait:           cfg.Sora.MaxWait,
		MaxPollRetries:    cfg.Sora.MaxPollRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	})
}

// ImageClient builds the image edit client from cfg.
func ImageClient(cfg *infra.Config, logger *infra.Logger) (*image.Client, error) {
	return image.NewClient(image.Options{
		Endpoint:          cfg.Image.Endpoint,
		APIKey:            cfg.Image.APIKey,
		Deployment:        cfg.Image.Deployment,
		APIVersion:        cfg.Image.APIVersion,
		Timeout:           cfg.Image.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	})
}

// FileStore opens the output directory store.
func FileStore(cfg *infra.Config) (*storage.FileStore, error) {
	return storage.NewFileStore(cfg.OutputDir)
}

// JobRepository returns the Postgres ledger when DATABASE_URL is set and
// the in-memory ledger otherwise. The returned func releases the pool.
func JobRepository(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.JobRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		return repo.NewMemoryJobRepository(), func() {}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	jobs := repo.NewJobRepository(infra.NewSQLRunner(pool, logger))
	if err := jobs.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	return jobs, pool.Close, nil
}
