package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"freightgraph/internal/errs"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps err to a problem response. Validation failures are the
// caller's fault; everything else is reported as an internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errs.IsValidation(err) {
		writeProblem(w, http.StatusBadRequest, title, err.Error(), r.URL.Path)
		return
	}
	var ce *errs.ComputationError
	if errors.As(err, &ce) {
		s.Log.Error("computation failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}
