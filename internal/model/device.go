package model

import "time"

// Well-known device statuses. Any other string reported by a device is kept as-is.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Device is the last-known state of a device, overwritten on every heartbeat.
type Device struct {
	DeviceID string    `json:"-"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}
