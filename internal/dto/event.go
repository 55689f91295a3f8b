package dto

import "time"

// Event types broadcast to viewers.
const (
	EventHeartbeat     = "heartbeat"
	EventImageUploaded = "image_uploaded"
	EventImageEvicted  = "image_evicted"
	EventImageMissing  = "image_missing"
	EventCleanup       = "cleanup"
	EventDeviceExpired = "device_expired"
)

// Event is a JSON message pushed over the events websocket.
type Event struct {
	Type     string     `json:"type"`
	DeviceID string     `json:"device_id"`
	Status   string     `json:"status,omitempty"`
	Image    *ImageInfo `json:"image,omitempty"`
	Count    int        `json:"count,omitempty"`
	Time     time.Time  `json:"time"`
}
