package handlers

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

var artifactTypes = map[string]string{
	".mp4": "video/mp4",
	".png": "image/png",
}

func (a *App) ArtifactDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid artifact name")
		return
	}
	f, info, err := a.Artifacts.Open(name)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(name))
	ct, ok := artifactTypes[ext]
	if !ok {
		ct = mime.TypeByExtension(ext)
	}
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
