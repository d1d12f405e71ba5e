package domain

import (
	"strings"
	"time"
)

// JobKind enumerates supported generation flows.
type JobKind string

const (
	JobKindVideo     JobKind = "video"
	JobKindImageEdit JobKind = "image_edit"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusSucceeded, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// ParseRemoteStatus maps the status strings reported by the video service
// onto the local lifecycle. Unknown values are treated as running.
func ParseRemoteStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "preprocessing", "queued", "pending", "notstarted", "not_started":
		return JobStatusQueued
	case "succeeded", "completed", "success":
		return JobStatusSucceeded
	case "failed", "cancelled", "canceled", "expired", "rejected":
		return JobStatusFailed
	default:
		return JobStatusRunning
	}
}

// JobHandle tracks a remote asynchronous job.
type JobHandle struct {
	ID            string
	Status        JobStatus
	RemoteStatus  string
	ResultRef     string
	FailureReason string
}

// Terminal reports whether the handle reached succeeded or failed.
func (h JobHandle) Terminal() bool {
	return h.Status.IsTerminal()
}

// Advance applies an observed status check to the handle. Transitions only
// move forward (queued, running, terminal); once terminal the handle is
// returned unchanged.
func (h JobHandle) Advance(next JobHandle) JobHandle {
	if h.Terminal() {
		return h
	}
	if next.Status.rank() < h.Status.rank() {
		if next.ResultRef != "" {
			h.ResultRef = next.ResultRef
		}
		h.RemoteStatus = next.RemoteStatus
		return h
	}
	out := h
	out.Status = next.Status
	out.RemoteStatus = next.RemoteStatus
	if next.ResultRef != "" {
		out.ResultRef = next.ResultRef
	}
	if next.FailureReason != "" {
		out.FailureReason = next.FailureReason
	}
	return out
}

// Job is a ledger entry for one generation request.
type Job struct {
	ID           string
	Kind         JobKind
	Status       JobStatus
	RemoteID     string
	Prompt       string
	ArtifactPath string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
