package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/geox/judge/internal/governance"
)

// WriteJSON writes a JSON response to the response writer
func WriteJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// WriteError sends an error response
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]string{
		"error":   errorCode,
		"message": message,
	}

	_ = WriteJSON(w, response)
}

// WriteAPIError sends e as an error response
func WriteAPIError(w http.ResponseWriter, e *APIError) {
	WriteError(w, e.StatusCode, string(e.Code), e.Message)
}

// writeOK sends data with status 200
func writeOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = WriteJSON(w, data)
}

// PatchRejection is the body of a refused config patch.
type PatchRejection struct {
	OK       bool                    `json:"ok"`
	SSOTHash string                  `json:"ssot_hash,omitempty"`
	Errors   []governance.PatchError `json:"errors"`
}

// writePatchRejection sends rej with its 400 or 409 status
func writePatchRejection(w http.ResponseWriter, rej *governance.PatchRejectedError) {
	errs := rej.Errors
	if errs == nil {
		errs = []governance.PatchError{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status)
	_ = WriteJSON(w, PatchRejection{OK: false, SSOTHash: rej.SSOTHash, Errors: errs})
}
