package handlers

import (
	"errors"
	"net/http"

	"imagejobs/internal/domain"
)

// statusFor maps a service error to an HTTP status and stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNoPayload):
		return http.StatusBadGateway, "no_payload"
	case errors.Is(err, domain.ErrSourceFetch):
		return http.StatusBadGateway, "source_fetch_failed"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream_failed"
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, "storage_failed"
	case errors.Is(err, domain.ErrRecordStore):
		return http.StatusInternalServerError, "record_store_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err. Model and source failures keep their message so the
// caller can see why a job failed; storage and internal errors are redacted.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error, jobID string) {
	code, errCode := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		a.Logger.Error().Err(err).
			Str("job_id", jobID).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		msg = http.StatusText(code)
	}
	a.json(w, code, errorBody{Error: errCode, Message: msg, JobID: jobID})
}
