package memory

import (
	"sort"
	"sync"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
)

// ImageRepository implements repository.ImageRepository in process memory.
// Records are indexed by device id; each device keeps its records in insertion order.
type ImageRepository struct {
	mu       sync.RWMutex
	byDevice map[string][]model.Image
	owner    map[string]string // filename -> device id
	total    int
}

// NewImageRepository creates an empty in-memory ledger.
func NewImageRepository() *ImageRepository {
	return &ImageRepository{
		byDevice: make(map[string][]model.Image),
		owner:    make(map[string]string),
	}
}

// Append adds a record to the device's list.
func (r *ImageRepository) Append(img *model.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byDevice[img.DeviceID] = append(r.byDevice[img.DeviceID], *img)
	r.owner[img.Filename] = img.DeviceID
	r.total++
	return nil
}

// Query returns a copy of the device's records sorted by upload time, newest first.
// Equal upload times are ordered newest insert first.
func (r *ImageRepository) Query(deviceID string) ([]model.Image, error) {
	r.mu.RLock()
	records := r.byDevice[deviceID]
	out := make([]model.Image, len(records))
	for i := range records {
		out[len(records)-1-i] = records[i]
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTime.After(out[j].UploadTime)
	})
	return out, nil
}

// Latest returns the device's record with the greatest upload time.
func (r *ImageRepository) Latest(deviceID string) (*model.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.byDevice[deviceID]
	if len(records) == 0 {
		return nil, repository.ErrNotFound
	}

	latest := records[0]
	for _, img := range records[1:] {
		if !img.UploadTime.Before(latest.UploadTime) {
			latest = img
		}
	}
	return &latest, nil
}

// Count returns the number of records held for the device.
func (r *ImageRepository) Count(deviceID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDevice[deviceID]), nil
}

// Total returns the number of records across all devices.
func (r *ImageRepository) Total() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total, nil
}

// Exists reports whether a record is stored under filename.
func (r *ImageRepository) Exists(filename string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owner[filename]
	return ok, nil
}

// Devices returns the ids of all devices holding at least one record, sorted.
func (r *ImageRepository) Devices() ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byDevice))
	for id := range r.byDevice {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// Remove deletes every record stored under filename.
func (r *ImageRepository) Remove(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deviceID, ok := r.owner[filename]
	if !ok {
		return nil
	}
	delete(r.owner, filename)

	records := r.byDevice[deviceID]
	kept := records[:0]
	for _, img := range records {
		if img.Filename == filename {
			r.total--
			continue
		}
		kept = append(kept, img)
	}

	if len(kept) == 0 {
		delete(r.byDevice, deviceID)
		return nil
	}
	r.byDevice[deviceID] = kept
	return nil
}
