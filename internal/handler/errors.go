// Package handler exposes the engine over HTTP: auth, roster,
// conversation history, and the websocket upgrade.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/chatline/chatline/internal/apperr"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeError maps the engine's error kinds onto HTTP status codes.
// Store failures are logged server-side and collapsed into a generic
// message.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *apperr.ValidationError
		notFoundErr   *apperr.NotFoundError
		transitionErr *apperr.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: validationErr.Error()})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: notFoundErr.Error()})
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, errorResponse{Message: transitionErr.Error()})
	default:
		log.Printf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Server error."})
	}
}
