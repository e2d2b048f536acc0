package handler

import (
	"encoding/json"
	"net/http"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps a service error onto the HTTP surface.
func writeServiceError(w http.ResponseWriter, err error) {
	writeJSON(w, model.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  model.KindOf(err),
	})
}
