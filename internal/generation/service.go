// Package generation runs the video and image flows end to end and records
// each run in the job ledger.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bibble/internal/domain"
	"bibble/internal/infra"
)

// VideoClient is the subset of the Sora client used by the service.
type VideoClient interface {
	Submit(ctx context.Context, req domain.VideoRequest) (domain.JobHandle, error)
	AwaitCompletion(ctx context.Context, handle domain.JobHandle) (domain.JobHandle, error)
	FetchResult(ctx context.Context, handle domain.JobHandle) (*domain.Artifact, error)
}

// ImageEditor performs a single image edit.
type ImageEditor interface {
	Edit(ctx context.Context, req domain.EditRequest) (*domain.Artifact, error)
}

// ArtifactWriter persists artifacts and returns where they landed.
type ArtifactWriter interface {
	Write(ctx context.Context, artifact domain.Artifact) (string, error)
}

// Options wires the service dependencies. Video and Images may be nil when
// the matching service is not configured.
type Options struct {
	Jobs   domain.JobRepository
	Video  VideoClient
	Images ImageEditor
	Store  ArtifactWriter
	Logger *infra.Logger
	// BackgroundTimeout bounds a video started with StartVideo. Zero means
	// no extra bound beyond the poller's own max wait.
	BackgroundTimeout time.Duration
}

// Service coordinates the generation flows.
type Service struct {
	jobs              domain.JobRepository
	video             VideoClient
	images            ImageEditor
	store             ArtifactWriter
	logger            *infra.Logger
	backgroundTimeout time.Duration
	newID             func() string

	wg         sync.WaitGroup
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// ErrUnavailable is returned when a flow is requested whose client is not
// configured.
var ErrUnavailable = fmt.Errorf("generation: flow not configured: %w", domain.ErrConfiguration)

// NewService validates the options and returns a ready service.
func NewService(opts Options) (*Service, error) {
	if opts.Jobs == nil {
		return nil, errors.New("generation: job repository is required")
	}
	if opts.Store == nil {
		return nil, errors.New("generation: artifact store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		jobs:              opts.Jobs,
		video:             opts.Video,
		images:            opts.Images,
		store:             opts.Store,
		logger:            logger,
		backgroundTimeout: opts.BackgroundTimeout,
		newID:             uuid.NewString,
		baseCtx:           base,
		cancelBase:        cancel,
	}, nil
}

// VideoEnabled reports whether a video client is configured.
func (s *Service) VideoEnabled() bool { return s.video != nil }

// ImagesEnabled reports whether an image editor is configured.
func (s *Service) ImagesEnabled() bool { return s.images != nil }

// GenerateVideo submits a video job, waits for it and stores the result.
// The returned job reflects the final ledger state, also on error.
func (s *Service) GenerateVideo(ctx context.Context, req domain.VideoRequest) (*domain.Job, error) {
	job, handle, err := s.submitVideo(ctx, req)
	if err != nil {
		return job, err
	}
	return s.completeVideo(ctx, job, handle)
}

// StartVideo records and submits a video job, then finishes it in the
// background. The returned job is a snapshot taken before the wait starts.
func (s *Service) StartVideo(ctx context.Context, req domain.VideoRequest) (*domain.Job, error) {
	job, handle, err := s.submitVideo(ctx, req)
	if err != nil {
		return job, err
	}

	snapshot := *job
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg := s.baseCtx
		if s.backgroundTimeout > 0 {
			var cancel context.CancelFunc
			bg, cancel = context.WithTimeout(s.baseCtx, s.backgroundTimeout)
			defer cancel()
		}
		if _, err := s.completeVideo(bg, job, handle); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: background video failed")
		}
	}()
	return &snapshot, nil
}

// EditImage runs one image edit and stores the result.
func (s *Service) EditImage(ctx context.Context, req domain.EditRequest) (*domain.Job, error) {
	if s.images == nil {
		return nil, ErrUnavailable
	}
	job := &domain.Job{
		ID:     s.newID(),
		Kind:   domain.JobKindImageEdit,
		Status: domain.JobStatusRunning,
		Prompt: domain.NormalizePrompt(req.Prompt),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("generation: record job: %w", err)
	}

	artifact, err := s.images.Edit(ctx, req)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	path, err := s.store.Write(ctx, *artifact)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	return s.succeed(ctx, job, path)
}

// Job returns the ledger entry for id.
func (s *Service) Job(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, id)
}

// Wait blocks until every background generation has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels background generations and waits for them, or returns
// when ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancelBase()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) submitVideo(ctx context.Context, req domain.VideoRequest) (*domain.Job, domain.JobHandle, error) {
	if s.video == nil {
		return nil, domain.JobHandle{}, ErrUnavailable
	}
	job := &domain.Job{
		ID:     s.newID(),
		Kind:   domain.JobKindVideo,
		Status: domain.JobStatusQueued,
		Prompt: domain.NormalizePrompt(req.Prompt),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, domain.JobHandle{}, fmt.Errorf("generation: record job: %w", err)
	}

	handle, err := s.video.Submit(ctx, req)
	if err != nil {
		job, err = s.fail(ctx, job, err)
		return job, handle, err
	}
	job.RemoteID = handle.ID
	job.Status = handle.Status
	// The remote job exists now; a lost ledger write must not orphan it.
	wctx, cancel := ledgerContext(ctx)
	defer cancel()
	if err := s.jobs.UpdateStatus(wctx, job.ID, job.Status, domain.JobUpdate{RemoteID: handle.ID}); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Str("remote_id", handle.ID).Msg("generation: record remote id failed")
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Str("remote_id", handle.ID).
		Str("status", string(handle.Status)).
		Msg("generation: video submitted")
	return job, handle, nil
}

func (s *Service) completeVideo(ctx context.Context, job *domain.Job, handle domain.JobHandle) (*domain.Job, error) {
	if !handle.Terminal() && job.Status != domain.JobStatusRunning {
		job.Status = domain.JobStatusRunning
		if err := s.jobs.UpdateStatus(ctx, job.ID, job.Status, domain.JobUpdate{}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: mark running failed")
		}
	}
	final, err := s.video.AwaitCompletion(ctx, handle)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	artifact, err := s.video.FetchResult(ctx, final)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	path, err := s.store.Write(ctx, *artifact)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	return s.succeed(ctx, job, path)
}

// ledgerContext keeps ledger writes alive after the request context ends so
// a cancelled generation is still recorded as failed.
func ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

func (s *Service) fail(ctx context.Context, job *domain.Job, cause error) (*domain.Job, error) {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = cause.Error()
	wctx, cancel := ledgerContext(ctx)
	defer cancel()
	if err := s.jobs.UpdateStatus(wctx, job.ID, job.Status, domain.JobUpdate{ErrorMessage: job.ErrorMessage}); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("generation: record failure failed")
	}
	s.logger.Warn().Err(cause).Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("generation: failed")
	return job, cause
}

func (s *Service) succeed(ctx context.Context, job *domain.Job, path string) (*domain.Job, error) {
	job.Status = domain.JobStatusSucceeded
	job.ArtifactPath = path
	wctx, cancel := ledgerContext(ctx)
	defer cancel()
	if err := s.jobs.UpdateStatus(wctx, job.ID, job.Status, domain.JobUpdate{ArtifactPath: path}); err != nil {
		return job, fmt.Errorf("generation: update job: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Str("path", path).Msg("generation: succeeded")
	return job, nil
}
