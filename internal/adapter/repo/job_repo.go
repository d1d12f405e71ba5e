package repo

import (
	"context"
	"fmt"
	"time"

	"bibble/internal/domain"
	"bibble/internal/infra"
	"bibble/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a job repository. db is normally an
// *infra.SQLRunner wrapping a pgx pool.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

// EnsureSchema creates the ledger table when it does not exist.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QJobsEnsureSchema); err != nil {
		return fmt.Errorf("repo: ensure jobs schema: %w", err)
	}
	return nil
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	_, err := r.db.Exec(ctx, sqlinline.QJobsInsert,
		job.ID,
		string(job.Kind),
		string(job.Status),
		job.RemoteID,
		job.Prompt,
		job.ArtifactPath,
		job.ErrorMessage,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert job: %w", err)
	}
	return nil
}

// UpdateStatus sets the status and any non-empty fields of update.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, update domain.JobUpdate) error {
	tag, err := r.db.Exec(ctx, sqlinline.QJobsUpdateStatus,
		jobID,
		string(status),
		update.RemoteID,
		update.ArtifactPath,
		update.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("repo: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var (
		job    domain.Job
		kind   string
		status string
	)
	err := r.db.QueryRow(ctx, sqlinline.QJobsGetByID, jobID).Scan(
		&job.ID,
		&kind,
		&status,
		&job.RemoteID,
		&job.Prompt,
		&job.ArtifactPath,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get job: %w", err)
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
