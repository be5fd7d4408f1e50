package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/logger"
)

// writeJSON writes data as a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err to an HTTP status and writes it as
// {"error": kind, "message": text}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{
			"path":   r.URL.Path,
			"status": status,
		})
	}
	writeJSON(w, status, map[string]string{
		"error":   errs.KindOf(err).String(),
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput, errs.ErrKindUnsupportedQuery:
		return http.StatusBadRequest
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusBadGateway
	case errs.ErrKindClosed:
		return http.StatusServiceUnavailable
	case errs.ErrKindBackendUnavailable:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid JSON body", err)
	}
	return nil
}
