package handler

import (
	"encoding/json"
	"net/http"

	dErrors "biblio/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// failure kind maps to one distinct client-visible status and envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeInternalConsistency {
		// Internal detail stays in the logs.
		message = "internal error"
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}
