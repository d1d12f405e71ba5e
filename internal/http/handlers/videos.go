package handlers

import (
	"encoding/json"
	"net/http"

	"bibble/internal/domain"
)

type videoGenerateRequest struct {
	Prompt   string `json:"prompt"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Seconds  int    `json:"n_seconds"`
	Variants int    `json:"n_variants"`
	Model    string `json:"model"`
}

// VideosGenerate submits a video job and answers before the job finishes.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	var req videoGenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Generation.StartVideo(r.Context(), domain.VideoRequest{
		Prompt:   req.Prompt,
		Width:    req.Width,
		Height:   req.Height,
		Seconds:  req.Seconds,
		Variants: req.Variants,
		Model:    req.Model,
	})
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	a.json(w, http.StatusAccepted, toJobResponse(job))
}
