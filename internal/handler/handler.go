package handler

import (
	"encoding/json"
	"net/http"

	"github.com/FlorentB974/lanmon/internal/logger"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(log logger.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", logger.Error(err))
	}
}

func writeError(log logger.Logger, w http.ResponseWriter, message, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details}); err != nil {
		log.Error("failed to encode error response", logger.Error(err))
	}
}
