package domain

import "context"

// JobRepository persists the generation ledger.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, update JobUpdate) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
}

// JobUpdate carries the optional fields written alongside a status change.
// Empty strings leave the stored value untouched.
type JobUpdate struct {
	RemoteID     string
	ArtifactPath string
	ErrorMessage string
}
