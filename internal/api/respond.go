package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ddomesh/ddo-node/internal/apperror"
)

// respond writes a JSON response with the given status.
func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "api response encoding failed", "error", err)
	}
}

// respondError maps an error onto its HTTP status and serialized form.
// Server-side failures are logged here so handlers don't have to.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.Wrap(err, apperror.CodeInternalError, r.URL.Path)
	if id := RequestID(r.Context()); id != "" {
		appErr.WithTraceID(id)
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
	}

	s.respond(w, appErr.StatusCode, appErr.ToResponse())
}
