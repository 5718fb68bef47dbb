package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aretw0/botflow/pkg/domain"
)

type envelope map[string]any

func (s *Server) writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) ok(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) fail(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, envelope{"success": false, "error": message})
}

// failErr maps err onto the error taxonomy. snap, when present, is echoed so
// clients can still render the session status.
func (s *Server) failErr(w http.ResponseWriter, r *http.Request, err error, snap *domain.Snapshot) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.Logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	body := envelope{
		"success":   false,
		"error":     err.Error(),
		"errorKind": domain.ErrorKind(err),
	}
	if snap != nil {
		body["session"] = snap
		body["status"] = snap.Status
	}
	s.writeJSON(w, code, body)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsGraphFailure(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decode reads an optional JSON body into v. An empty body is not an error.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
