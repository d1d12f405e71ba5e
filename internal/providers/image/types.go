package image

import (
	"context"

	"bibble/internal/domain"
)

// Editor is the contract implemented by image edit providers.
type Editor interface {
	Edit(ctx context.Context, req domain.EditRequest) (*domain.Artifact, error)
}
