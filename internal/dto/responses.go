package dto

import (
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
)

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries an error message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type HeartbeatResponse struct {
	Message  string `json:"message"`
	DeviceID string `json:"device_id"`
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

// DevicesData maps device ids to their last-known state.
type DevicesData struct {
	Devices map[string]model.Device `json:"devices"`
}

type CleanupResponse struct {
	Message      string `json:"message"`
	RemovedCount int    `json:"removed_count"`
	MissingCount int    `json:"missing_count"`
}

type StatusData struct {
	OnlineDevices int       `json:"online_devices"`
	TotalDevices  int       `json:"total_devices"`
	TotalImages   int       `json:"total_images"`
	Timestamp     time.Time `json:"timestamp"`
}
