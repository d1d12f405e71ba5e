// Package poll drives remote asynchronous jobs to a terminal status by
// checking their status at a fixed interval.
package poll

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"bibble/internal/domain"
	"bibble/internal/infra"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultMaxWait    = 30 * time.Minute
	DefaultMaxRetries = 3
)

// StatusFunc performs one status check for the job with the given id.
type StatusFunc func(ctx context.Context, id string) (domain.JobHandle, error)

// Options configures a Poller. Zero values fall back to the defaults.
type Options struct {
	Interval time.Duration
	MaxWait  time.Duration
	// MaxRetries bounds consecutive transient failures; a successful check
	// resets the count.
	MaxRetries int
	Clock      Clock
	Logger     *infra.Logger
}

// Poller checks a job's status until it reaches a terminal state.
type Poller struct {
	status     StatusFunc
	interval   time.Duration
	maxWait    time.Duration
	maxRetries int
	clock      Clock
	logger     *infra.Logger
}

// New constructs a Poller around status.
func New(status StatusFunc, opts Options) *Poller {
	p := &Poller{
		status:     status,
		interval:   opts.Interval,
		maxWait:    opts.MaxWait,
		maxRetries: opts.MaxRetries,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.maxWait <= 0 {
		p.maxWait = DefaultMaxWait
	}
	if p.maxRetries <= 0 {
		p.maxRetries = DefaultMaxRetries
	}
	if p.clock == nil {
		p.clock = SystemClock{}
	}
	if p.logger == nil {
		p.logger = infra.DiscardLogger()
	}
	return p
}

// Checks returns a lazy sequence of status checks for handle. Nothing
// happens until the sequence is ranged over; every range starts a fresh
// wait from handle. Each step sleeps for the interval and then checks the
// status once, never overlapping. The sequence ends after yielding a
// terminal handle or an error. A handle that is already terminal is
// yielded once without contacting the service.
func (p *Poller) Checks(ctx context.Context, handle domain.JobHandle) iter.Seq2[domain.JobHandle, error] {
	return func(yield func(domain.JobHandle, error) bool) {
		if handle.Terminal() {
			yield(handle, nil)
			return
		}

		start := p.clock.Now()
		current := handle
		failures := 0
		for {
			if p.clock.Now().Sub(start)+p.interval > p.maxWait {
				yield(current, fmt.Errorf("poll: job %s still %s after %s: %w", current.ID, current.Status, p.maxWait, domain.ErrTimeoutExceeded))
				return
			}
			if err := p.clock.Sleep(ctx, p.interval); err != nil {
				yield(current, domain.ContextError(ctx, "poll: job "+current.ID, err))
				return
			}

			observed, err := p.status(ctx, current.ID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(current, domain.ContextError(ctx, "poll: job "+current.ID, ctxErr))
					return
				}
				if !Retryable(err) {
					yield(current, err)
					return
				}
				failures++
				p.logger.Warn().
					Err(err).
					Str("job_id", current.ID).
					Int("attempt", failures).
					Int("max_retries", p.maxRetries).
					Msg("poll: transient status failure")
				if failures >= p.maxRetries {
					yield(current, fmt.Errorf("poll: job %s: %d consecutive status failures: %w", current.ID, failures, err))
					return
				}
				continue
			}
			failures = 0

			previous := current.Status
			current = current.Advance(observed)
			if current.Status != previous {
				p.logger.Info().
					Str("job_id", current.ID).
					Str("status", string(current.Status)).
					Str("remote_status", current.RemoteStatus).
					Msg("poll: job status changed")
			}
			if !yield(current, nil) || current.Terminal() {
				return
			}
		}
	}
}

// AwaitCompletion drains Checks and returns the terminal handle. A failed
// job is reported immediately with domain.ErrJobFailed alongside the handle.
func (p *Poller) AwaitCompletion(ctx context.Context, handle domain.JobHandle) (domain.JobHandle, error) {
	current := handle
	for h, err := range p.Checks(ctx, handle) {
		current = h
		if err != nil {
			return current, err
		}
	}
	if current.Status == domain.JobStatusFailed {
		reason := current.FailureReason
		if reason == "" {
			reason = current.RemoteStatus
		}
		return current, fmt.Errorf("poll: job %s: %s: %w", current.ID, reason, domain.ErrJobFailed)
	}
	return current, nil
}

// Retryable reports whether a status check failure is worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrTransientPoll) || errors.Is(err, domain.ErrServiceUnavailable)
}
