package generation

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibble/internal/adapter/repo"
	"bibble/internal/domain"
	"bibble/internal/storage"
)

type fakeVideo struct {
	submitErr error
	awaitErr  error
	fetchErr  error
	block     bool
	awaited   atomic.Int32
}

func (f *fakeVideo) Submit(ctx context.Context, req domain.VideoRequest) (domain.JobHandle, error) {
	if f.submitErr != nil {
		return domain.JobHandle{}, f.submitErr
	}
	return domain.JobHandle{ID: "task_1", Status: domain.JobStatusQueued, RemoteStatus: "queued"}, nil
}

func (f *fakeVideo) AwaitCompletion(ctx context.Context, handle domain.JobHandle) (domain.JobHandle, error) {
	f.awaited.Add(1)
	if f.block {
		<-ctx.Done()
		return handle, domain.ErrCancelled
	}
	if f.awaitErr != nil {
		return handle, f.awaitErr
	}
	handle.Status = domain.JobStatusSucceeded
	handle.ResultRef = "gen_1"
	return handle, nil
}

func (f *fakeVideo) FetchResult(ctx context.Context, handle domain.JobHandle) (*domain.Artifact, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &domain.Artifact{Filename: handle.ID + ".mp4", ContentType: "video/mp4", Data: []byte("mp4")}, nil
}

type fakeEditor struct {
	err error
}

func (f *fakeEditor) Edit(ctx context.Context, req domain.EditRequest) (*domain.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Artifact{Filename: "edit.png", ContentType: "image/png", Data: []byte("png")}, nil
}

func newService(t *testing.T, video VideoClient, images ImageEditor) (*Service, *repo.JobRepositoryMemory) {
	t.Helper()
	jobs := repo.NewMemoryJobRepository()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc, err := NewService(Options{Jobs: jobs, Video: video, Images: images, Store: store})
	require.NoError(t, err)
	return svc, jobs
}

func TestGenerateVideoStoresArtifact(t *testing.T) {
	svc, jobs := newService(t, &fakeVideo{}, nil)

	job, err := svc.GenerateVideo(context.Background(), domain.VideoRequest{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, "task_1", job.RemoteID)

	data, err := os.ReadFile(job.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	stored, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
	assert.Equal(t, job.ArtifactPath, stored.ArtifactPath)
	assert.Equal(t, "task_1", stored.RemoteID)
}

func TestGenerateVideoRecordsFailure(t *testing.T) {
	cause := errors.Join(domain.ErrJobFailed, errors.New("content filtered"))
	svc, jobs := newService(t, &fakeVideo{awaitErr: cause}, nil)

	job, err := svc.GenerateVideo(context.Background(), domain.VideoRequest{Prompt: "a cat"})
	require.ErrorIs(t, err, domain.ErrJobFailed)
	require.NotNil(t, job)

	stored, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "content filtered")
}

func TestGenerateVideoSubmitRejected(t *testing.T) {
	video := &fakeVideo{submitErr: domain.Rejected("video: submit", "prompt is required")}
	svc, jobs := newService(t, video, nil)

	job, err := svc.GenerateVideo(context.Background(), domain.VideoRequest{})
	require.ErrorIs(t, err, domain.ErrRequestRejected)
	assert.Zero(t, video.awaited.Load())

	stored, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}

func TestEditImage(t *testing.T) {
	svc, jobs := newService(t, nil, &fakeEditor{})

	job, err := svc.EditImage(context.Background(), domain.EditRequest{Prompt: "hat", Images: [][]byte{[]byte("x")}})
	require.NoError(t, err)
	assert.Equal(t, domain.JobKindImageEdit, job.Kind)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.FileExists(t, job.ArtifactPath)

	stored, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ArtifactPath, stored.ArtifactPath)
	_ = jobs
}

func TestEditImageRejected(t *testing.T) {
	svc, _ := newService(t, nil, &fakeEditor{err: &domain.RemoteError{Op: "image: edit", StatusCode: 400, Kind: domain.ErrRequestRejected}})

	job, err := svc.EditImage(context.Background(), domain.EditRequest{Prompt: "hat"})
	require.ErrorIs(t, err, domain.ErrRequestRejected)

	stored, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "status 400")
}

func TestUnconfiguredFlows(t *testing.T) {
	svc, _ := newService(t, nil, nil)
	assert.False(t, svc.VideoEnabled())
	assert.False(t, svc.ImagesEnabled())

	_, err := svc.GenerateVideo(context.Background(), domain.VideoRequest{Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = svc.StartVideo(context.Background(), domain.VideoRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.EditImage(context.Background(), domain.EditRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStartVideoCompletesInBackground(t *testing.T) {
	svc, _ := newService(t, &fakeVideo{}, nil)

	job, err := svc.StartVideo(context.Background(), domain.VideoRequest{Prompt: "a cat"})
	require.NoError(t, err)
	assert.False(t, job.Status.IsTerminal())

	svc.Wait()

	stored, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
	assert.NotEmpty(t, stored.ArtifactPath)
}

func TestShutdownCancelsBackgroundVideo(t *testing.T) {
	svc, _ := newService(t, &fakeVideo{block: true}, nil)

	job, err := svc.StartVideo(context.Background(), domain.VideoRequest{Prompt: "a cat"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	stored, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "cancelled")
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
	_, err = NewService(Options{Jobs: repo.NewMemoryJobRepository()})
	assert.Error(t, err)
}

// remoteIDFailingRepo rejects the write that records the provider's job id.
type remoteIDFailingRepo struct {
	*repo.JobRepositoryMemory
}

func (r remoteIDFailingRepo) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, update domain.JobUpdate) error {
	if update.RemoteID != "" {
		return errors.New("ledger unavailable")
	}
	return r.JobRepositoryMemory.UpdateStatus(ctx, jobID, status, update)
}

func TestStartVideoSurvivesRemoteIDWriteFailure(t *testing.T) {
	jobs := remoteIDFailingRepo{repo.NewMemoryJobRepository()}
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	video := &fakeVideo{}
	svc, err := NewService(Options{Jobs: jobs, Video: video, Store: store})
	require.NoError(t, err)

	job, err := svc.StartVideo(context.Background(), domain.VideoRequest{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "task_1", job.RemoteID)

	svc.Wait()

	assert.Equal(t, int32(1), video.awaited.Load())
	stored, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
	assert.NotEmpty(t, stored.ArtifactPath)
}
