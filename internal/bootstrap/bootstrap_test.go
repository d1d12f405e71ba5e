package bootstrap

import (
	"context"
	"errors"
	"testing"

	"bibble/internal/adapter/repo"
	"bibble/internal/domain"
	"bibble/internal/infra"
)

func TestClientsRequireCredentials(t *testing.T) {
	cfg := &infra.Config{}
	if _, err := VideoClient(cfg, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for video, got %v", err)
	}
	if _, err := ImageClient(cfg, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for image, got %v", err)
	}
}

func TestClientsFromConfig(t *testing.T) {
	cfg := &infra.Config{
		Sora:  infra.SoraConfig{Endpoint: "https://sora.example", APIKey: "k", Model: "sora"},
		Image: infra.ImageConfig{Endpoint: "https://img.example", APIKey: "k", Deployment: "gpt-image-1"},
	}
	v, err := VideoClient(cfg, nil)
	if err != nil {
		t.Fatalf("video: %v", err)
	}
	if v.Model() != "sora" {
		t.Fatalf("unexpected model %q", v.Model())
	}
	img, err := ImageClient(cfg, nil)
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if img.Deployment() != "gpt-image-1" {
		t.Fatalf("unexpected deployment %q", img.Deployment())
	}
}

func TestJobRepositoryFallsBackToMemory(t *testing.T) {
	jobs, closeFn, err := JobRepository(context.Background(), &infra.Config{}, *infra.DiscardLogger())
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	defer closeFn()
	if _, ok := jobs.(*repo.JobRepositoryMemory); !ok {
		t.Fatalf("expected memory repository, got %T", jobs)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := FileStore(&infra.Config{OutputDir: dir})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if store.BasePath() != dir {
		t.Fatalf("unexpected base path %q", store.BasePath())
	}
}
