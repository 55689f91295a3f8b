package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
)

// DefaultOfflineTTL is how long an offline device is kept after its last heartbeat.
const DefaultOfflineTTL = 5 * time.Minute

// ErrInvalidDevice is returned for heartbeats without a device id.
var ErrInvalidDevice = errors.New("device_id is required")

// Registry tracks the last-known status of every device and expires stale offline ones.
type Registry struct {
	repo       repository.DeviceRepository
	offlineTTL time.Duration
	now        func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithOfflineTTL sets the staleness threshold for offline devices.
func WithOfflineTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.offlineTTL = ttl
		}
	}
}

// WithNow sets the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry backed by repo.
func NewRegistry(repo repository.DeviceRepository, opts ...Option) *Registry {
	r := &Registry{
		repo:       repo,
		offlineTTL: DefaultOfflineTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordHeartbeat stores status as the device's current state, stamped with the current time.
func (r *Registry) RecordHeartbeat(deviceID, status string) (model.Device, error) {
	if deviceID == "" {
		return model.Device{}, ErrInvalidDevice
	}

	dev := model.Device{
		DeviceID: deviceID,
		Status:   status,
		LastSeen: r.now(),
	}
	if err := r.repo.Upsert(&dev); err != nil {
		return model.Device{}, fmt.Errorf("record heartbeat for %s: %w", deviceID, err)
	}
	return dev, nil
}

// Expire removes offline devices whose last heartbeat is older than the threshold
// and returns their ids.
func (r *Registry) Expire() ([]string, error) {
	expired, err := r.repo.ExpireOffline(r.now().Add(-r.offlineTTL))
	if err != nil {
		return nil, fmt.Errorf("expire offline devices: %w", err)
	}
	return expired, nil
}

// SnapshotAndExpire runs the expiry sweep, then returns the remaining devices.
// The expired ids are returned alongside.
func (r *Registry) SnapshotAndExpire() (map[string]model.Device, []string, error) {
	expired, err := r.Expire()
	if err != nil {
		return nil, nil, err
	}

	devices, err := r.repo.GetAll()
	if err != nil {
		return nil, expired, fmt.Errorf("list devices: %w", err)
	}
	return devices, expired, nil
}

// CountOnline returns the number of retained devices reporting "online".
func (r *Registry) CountOnline() (int, error) {
	return r.repo.CountByStatus(model.StatusOnline)
}

// Total returns the number of retained devices.
func (r *Registry) Total() (int, error) {
	return r.repo.Count()
}
