package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bibble/internal/domain"
)

type jobResponse struct {
	ID          string           `json:"id"`
	Kind        domain.JobKind   `json:"kind"`
	Status      domain.JobStatus `json:"status"`
	RemoteID    string           `json:"remote_id,omitempty"`
	Prompt      string           `json:"prompt"`
	ArtifactURL string           `json:"artifact_url,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toJobResponse(job *domain.Job) jobResponse {
	resp := jobResponse{
		ID:        job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		RemoteID:  job.RemoteID,
		Prompt:    job.Prompt,
		Error:     job.ErrorMessage,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.ArtifactPath != "" {
		resp.ArtifactURL = "/v1/artifacts/" + filepath.Base(job.ArtifactPath)
	}
	return resp
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	job, err := a.Generation.Job(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}
