package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Phill981/PrevexRaspiBackend/internal/config"
	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
	"github.com/Phill981/PrevexRaspiBackend/internal/service"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/retention"
)

const (
	// DefaultImageLimit is the listing size when no limit is given.
	DefaultImageLimit = 20

	multipartMemory = 8 << 20
)

// UploadImageHandler stores the multipart "image" file for the device named by
// the device_id query parameter.
func UploadImageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.URL.Query().Get("device_id")
		if deviceID == "" {
			writeError(w, logger, http.StatusBadRequest, "device_id is required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, logger, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Image exceeds %d bytes", cfg.MaxUploadSize))
				return
			}
			writeError(w, logger, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("image")
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "image file is required")
			return
		}
		defer file.Close()

		img, err := manager.UploadImage(deviceID, file)
		if err != nil {
			if errors.Is(err, retention.ErrValidation) {
				writeError(w, logger, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, logger, http.StatusInternalServerError, "Failed to store image")
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.UploadResponse{Message: "Image uploaded successfully", Filename: img.Filename})
	}
}

// ImagesHandler lists a device's newest images, up to ?limit= (default 20).
func ImagesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("device_id")
		limit := atoiDefault(r.URL.Query().Get("limit"), DefaultImageLimit)

		images, err := manager.Images(deviceID, limit)
		if err != nil {
			logger.Error("Error querying images for %s: %v", deviceID, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		data := dto.ImagesData{Images: make([]dto.ImageInfo, 0, len(images))}
		for _, img := range images {
			data.Images = append(data.Images, dto.NewImageInfo(img))
		}
		writeJSON(w, logger, http.StatusOK, data)
	}
}

// LatestImageHandler returns the device's newest image.
func LatestImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("device_id")

		img, err := manager.LatestImage(deviceID)
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, logger, http.StatusNotFound, "No images found for device")
			return
		}
		if err != nil {
			logger.Error("Error finding latest image for %s: %v", deviceID, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.NewImageInfo(*img))
	}
}

// CleanupOrphanedHandler reconciles the blob store with the ledger for one device.
func CleanupOrphanedHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CleanupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, logger, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		removed, missing, err := manager.CleanupOrphaned(req.DeviceID)
		if err != nil {
			if errors.Is(err, retention.ErrValidation) {
				writeError(w, logger, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("Error cleaning up %s: %v", req.DeviceID, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.CleanupResponse{
			Message:      fmt.Sprintf("Cleaned up %d orphaned files", removed),
			RemovedCount: removed,
			MissingCount: missing,
		})
	}
}
