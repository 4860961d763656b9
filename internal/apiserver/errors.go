package apiserver

import (
	"net/http"

	"github.com/geox/judge/internal/api"
)

// handleMethodNotAllowed handles 405 responses
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	api.WriteError(w, http.StatusMethodNotAllowed, string(api.ErrorCodeMethodNotAllowed),
		"Method "+r.Method+" not allowed for "+r.URL.Path)
}
