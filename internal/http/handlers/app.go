package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"bibble/internal/generation"
	"bibble/internal/infra"
)

const defaultMaxUploadBytes = 32 << 20

// ArtifactReader opens stored artifacts for download.
type ArtifactReader interface {
	Open(name string) (io.ReadSeekCloser, os.FileInfo, error)
}

// App holds the handler dependencies.
type App struct {
	Generation     *generation.Service
	Artifacts      ArtifactReader
	Logger         infra.Logger
	MaxUploadBytes int64
}

func NewApp(svc *generation.Service, artifacts ArtifactReader, logger infra.Logger) *App {
	return &App{
		Generation:     svc,
		Artifacts:      artifacts,
		Logger:         logger,
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// log returns the request-scoped logger when one was attached, else the
// application logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}
