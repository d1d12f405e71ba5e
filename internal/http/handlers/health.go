package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"video":  a.Generation != nil && a.Generation.VideoEnabled(),
		"images": a.Generation != nil && a.Generation.ImagesEnabled(),
	})
}
