package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bibble/internal/domain"
)

// JobRepositoryMemory keeps the ledger in process memory. It is used when
// no database is configured.
type JobRepositoryMemory struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

// NewMemoryJobRepository returns an empty in-memory ledger.
func NewMemoryJobRepository() *JobRepositoryMemory {
	return &JobRepositoryMemory{
		jobs: make(map[string]domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *JobRepositoryMemory) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("repo: job %s already exists", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now()
	}
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepositoryMemory) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, update domain.JobUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if update.RemoteID != "" {
		job.RemoteID = update.RemoteID
	}
	if update.ArtifactPath != "" {
		job.ArtifactPath = update.ArtifactPath
	}
	if update.ErrorMessage != "" {
		job.ErrorMessage = update.ErrorMessage
	}
	job.UpdatedAt = r.now()
	r.jobs[jobID] = job
	return nil
}

func (r *JobRepositoryMemory) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
