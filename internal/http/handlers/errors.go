package handlers

import (
	"errors"
	"net/http"

	"bibble/internal/domain"
)

// writeDomainError maps the error taxonomy onto HTTP status codes.
func (a *App) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var remote *domain.RemoteError
	message := err.Error()
	if errors.As(err, &remote) && remote.Message != "" {
		message = remote.Message
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrRequestRejected):
		a.error(w, http.StatusBadRequest, "request_rejected", message)
	case errors.Is(err, domain.ErrTimeoutExceeded):
		a.error(w, http.StatusGatewayTimeout, "timeout", message)
	case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, domain.ErrTransientPoll):
		a.error(w, http.StatusBadGateway, "upstream_unavailable", message)
	case errors.Is(err, domain.ErrJobFailed), errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "generation_failed", message)
	case errors.Is(err, domain.ErrConfiguration):
		a.error(w, http.StatusServiceUnavailable, "not_configured", "generation flow is not configured")
	case errors.Is(err, domain.ErrCancelled):
		a.error(w, http.StatusServiceUnavailable, "cancelled", message)
	default:
		a.log(r).Error().Err(err).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
