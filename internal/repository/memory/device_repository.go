package memory

import (
	"sync"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
)

// DeviceRepository implements repository.DeviceRepository in process memory.
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]model.Device
}

// NewDeviceRepository creates an empty in-memory device registry.
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{devices: make(map[string]model.Device)}
}

// Upsert inserts or overwrites the device record.
func (r *DeviceRepository) Upsert(dev *model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[dev.DeviceID] = *dev
	return nil
}

// GetAll returns a copy of all device records keyed by device id.
func (r *DeviceRepository) GetAll() (map[string]model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]model.Device, len(r.devices))
	for id, dev := range r.devices {
		out[id] = dev
	}
	return out, nil
}

// Count returns the number of device records.
func (r *DeviceRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices), nil
}

// CountByStatus returns the number of devices reporting status.
func (r *DeviceRepository) CountByStatus(status string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, dev := range r.devices {
		if dev.Status == status {
			n++
		}
	}
	return n, nil
}

// ExpireOffline deletes offline devices last seen before cutoff.
func (r *DeviceRepository) ExpireOffline(cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, dev := range r.devices {
		if dev.Status == model.StatusOffline && dev.LastSeen.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.devices, id)
	}
	return expired, nil
}
