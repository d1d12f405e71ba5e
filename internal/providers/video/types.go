package video

import (
	"context"

	"bibble/internal/domain"
)

// Generator produces a video artifact from a request. The handle reports
// the remote job's last observed state, also when an error is returned.
type Generator interface {
	Generate(ctx context.Context, req domain.VideoRequest) (domain.JobHandle, *domain.Artifact, error)
}

var _ Generator = (*Client)(nil)
