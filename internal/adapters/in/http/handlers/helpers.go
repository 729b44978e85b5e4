// internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"net/http"

	claimdom "tokenclaim/internal/domain/claim"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {error, message} body every claim failure uses.
func writeError(w http.ResponseWriter, e *claimdom.Error) {
	if e == nil {
		e = &claimdom.Error{Code: claimdom.CodeServerError, Message: "unknown error", Status: http.StatusInternalServerError}
	}
	if e.Retryable && e.Status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "2")
	}
	writeJSON(w, e.Status, e)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, claimdom.MethodNotAllowed())
}
