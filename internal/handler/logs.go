package handler

import (
	"net/http"
	"os"

	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
)

// ShowLogsHandler serves the server log file as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := logger.LogPath()
		if filePath == "" {
			http.Error(w, "File logging is disabled", http.StatusNotFound)
			return
		}

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.Error(w, "Log file not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the server log file.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := logger.CleanLogs(); err != nil {
			writeError(w, logger, http.StatusInternalServerError, "Failed to clear logs")
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.MessageResponse{Message: "Logs cleared"})
	}
}
