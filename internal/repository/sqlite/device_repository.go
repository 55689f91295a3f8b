package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
)

// DeviceRepository implements repository.DeviceRepository for SQLite.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new SQLite device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert inserts or replaces the device record.
func (r *DeviceRepository) Upsert(dev *model.Device) error {
	_, err := r.db.write(`
		INSERT INTO devices (device_id, status, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET status = excluded.status, last_seen = excluded.last_seen
	`, dev.DeviceID, dev.Status, dev.LastSeen.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// GetAll retrieves every device record keyed by device id.
func (r *DeviceRepository) GetAll() (map[string]model.Device, error) {
	devices := make(map[string]model.Device)
	err := r.db.read(func(conn *sql.DB) error {
		rows, err := conn.Query(`SELECT device_id, status, last_seen FROM devices`)
		if err != nil {
			return fmt.Errorf("failed to query devices: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var dev model.Device
			var lastSeen int64
			if err := rows.Scan(&dev.DeviceID, &dev.Status, &lastSeen); err != nil {
				return fmt.Errorf("failed to scan device: %w", err)
			}
			dev.LastSeen = time.Unix(0, lastSeen)
			devices[dev.DeviceID] = dev
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// Count returns the number of device records.
func (r *DeviceRepository) Count() (int, error) {
	n, err := r.db.count(`SELECT COUNT(*) FROM devices`)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of devices with the given status.
func (r *DeviceRepository) CountByStatus(status string) (int, error) {
	n, err := r.db.count(`SELECT COUNT(*) FROM devices WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return n, nil
}

// ExpireOffline removes offline devices last seen before cutoff in one transaction.
func (r *DeviceRepository) ExpireOffline(cutoff time.Time) ([]string, error) {
	var expired []string
	err := r.db.inTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT device_id FROM devices WHERE status = ? AND last_seen < ?`,
			model.StatusOffline, cutoff.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to query stale devices: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan device: %w", err)
			}
			expired = append(expired, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate stale devices: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM devices WHERE status = ? AND last_seen < ?`,
			model.StatusOffline, cutoff.UnixNano()); err != nil {
			return fmt.Errorf("failed to delete stale devices: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
