package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/service"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/device"
)

// HeartbeatHandler records a device heartbeat sent as JSON {device_id, status}.
func HeartbeatHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.HeartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, logger, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		if _, err := manager.Heartbeat(req.DeviceID, req.Status); err != nil {
			if errors.Is(err, device.ErrInvalidDevice) {
				writeError(w, logger, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("Error recording heartbeat for %s: %v", req.DeviceID, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.HeartbeatResponse{Message: "Heartbeat received", DeviceID: req.DeviceID})
	}
}

// DevicesHandler lists the known devices after purging stale offline ones.
func DevicesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := manager.Devices()
		if err != nil {
			logger.Error("Error listing devices: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.DevicesData{Devices: devices})
	}
}
