package repository

import (
	"errors"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("not found")

// ImageRepository is the image ledger: an ordered collection of image records
// queryable by device.
type ImageRepository interface {
	// Create operations
	Append(img *model.Image) error

	// Read operations

	// Query returns the device's records, most recent upload first. Records with
	// equal upload times keep a stable order within one call.
	Query(deviceID string) ([]model.Image, error)
	// Latest returns the record with the greatest upload time, or ErrNotFound.
	Latest(deviceID string) (*model.Image, error)
	Count(deviceID string) (int, error)
	Total() (int, error)
	Exists(filename string) (bool, error)
	Devices() ([]string, error)

	// Delete operations

	// Remove deletes the record stored under filename. Removing an absent
	// record is not an error.
	Remove(filename string) error
}

// DeviceRepository holds the last-known record of every device.
type DeviceRepository interface {
	// Upsert inserts or overwrites the record for dev.DeviceID.
	Upsert(dev *model.Device) error

	GetAll() (map[string]model.Device, error)
	Count() (int, error)
	CountByStatus(status string) (int, error)

	// ExpireOffline atomically deletes every offline record last seen before
	// cutoff and returns the ids it deleted.
	ExpireOffline(cutoff time.Time) ([]string, error)
}
