package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bibble/internal/domain"
	"bibble/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type execCall struct {
	query string
	args  []any
}

type fakeExecutor struct {
	execs    []execCall
	affected int64
	row      simpleRow
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	if f.affected > 0 {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return f.row
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func newRunner(exec *fakeExecutor) *infra.SQLRunner {
	return infra.NewSQLRunner(exec, *infra.DiscardLogger())
}

func TestJobRepositoryCreate(t *testing.T) {
	exec := &fakeExecutor{affected: 1}
	repo := NewJobRepository(newRunner(exec))

	job := &domain.Job{ID: "job-1", Kind: domain.JobKindVideo, Status: domain.JobStatusQueued, Prompt: "cat"}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.CreatedAt.IsZero() || !job.UpdatedAt.Equal(job.CreatedAt) {
		t.Fatalf("expected timestamps to be set: %+v", job)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected one exec, got %d", len(exec.execs))
	}
	call := exec.execs[0]
	if strings.HasPrefix(call.query, "--sql") {
		t.Fatalf("marker should be stripped by the runner")
	}
	if !strings.Contains(call.query, "insert into generation_jobs") {
		t.Fatalf("unexpected query: %s", call.query)
	}
	if call.args[1] != "video" || call.args[2] != "queued" {
		t.Fatalf("unexpected args: %v", call.args)
	}
}

func TestJobRepositoryUpdateStatusNotFound(t *testing.T) {
	exec := &fakeExecutor{}
	repo := NewJobRepository(newRunner(exec))

	err := repo.UpdateStatus(context.Background(), "missing", domain.JobStatusFailed, domain.JobUpdate{ErrorMessage: "boom"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := exec.execs[0].args[4]; got != "boom" {
		t.Fatalf("unexpected error message arg: %v", got)
	}
}

func TestJobRepositoryGetByID(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	exec := &fakeExecutor{row: simpleRow{scan: func(dest ...any) error {
		*dest[0].(*string) = "job-2"
		*dest[1].(*string) = "image_edit"
		*dest[2].(*string) = "succeeded"
		*dest[3].(*string) = ""
		*dest[4].(*string) = "hat"
		*dest[5].(*string) = "generated/x.png"
		*dest[6].(*string) = ""
		*dest[7].(*time.Time) = created
		*dest[8].(*time.Time) = created.Add(time.Minute)
		return nil
	}}}
	repo := NewJobRepository(newRunner(exec))

	job, err := repo.GetByID(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Kind != domain.JobKindImageEdit || job.Status != domain.JobStatusSucceeded || job.ArtifactPath != "generated/x.png" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestJobRepositoryGetByIDNotFound(t *testing.T) {
	repo := NewJobRepository(newRunner(&fakeExecutor{}))
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
