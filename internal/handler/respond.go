package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError responds with {"detail": detail}.
func writeError(w http.ResponseWriter, logger *logger.Logger, status int, detail string) {
	writeJSON(w, logger, status, dto.ErrorResponse{Detail: detail})
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
