package dto

// HeartbeatRequest is sent by devices to report liveness.
type HeartbeatRequest struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
}

// CleanupRequest asks for orphan reconciliation of one device.
type CleanupRequest struct {
	DeviceID string `json:"device_id"`
}
