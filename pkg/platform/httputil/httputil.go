// Package httputil writes JSON responses with a consistent error envelope.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope. Descriptions of 5xx responses other
// than gateway errors are dropped so internal details never leak.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		description = ""
	}
	WriteJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}
