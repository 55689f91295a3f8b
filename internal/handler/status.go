package handler

import (
	"net/http"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/service"
)

// RootHandler answers the liveness banner.
func RootHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, dto.MessageResponse{Message: "Raspberry Pi Image API is running"})
	}
}

func HealthHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, dto.HealthResponse{Status: "healthy", Timestamp: time.Now()})
	}
}

// StatusHandler reports device and image totals.
func StatusHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := manager.Status()
		if err != nil {
			logger.Error("Error building status: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, status)
	}
}
