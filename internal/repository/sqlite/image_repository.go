package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
)

const insertImage = `
	INSERT INTO images (device_id, filename, upload_time, filepath, filesize)
	VALUES (?, ?, ?, ?, ?)
`

const selectImages = `
	SELECT id, device_id, filename, upload_time, filepath, filesize
	FROM images WHERE device_id = ?
	ORDER BY upload_time DESC, id DESC
`

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Append adds a new image record to the database.
func (r *ImageRepository) Append(img *model.Image) error {
	result, err := r.db.write(insertImage,
		img.DeviceID, img.Filename, img.UploadTime.UnixNano(), img.FilePath, img.FileSize)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read image id: %w", err)
	}
	img.ID = id
	return nil
}

// Query retrieves the device's images, newest first.
func (r *ImageRepository) Query(deviceID string) ([]model.Image, error) {
	images := []model.Image{}
	err := r.db.read(func(conn *sql.DB) error {
		rows, err := conn.Query(selectImages, deviceID)
		if err != nil {
			return fmt.Errorf("failed to query images: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			img, err := scanImage(rows)
			if err != nil {
				return err
			}
			images = append(images, *img)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate images: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// Latest retrieves the device's most recent image.
func (r *ImageRepository) Latest(deviceID string) (*model.Image, error) {
	var img *model.Image
	err := r.db.read(func(conn *sql.DB) error {
		var err error
		img, err = scanImage(conn.QueryRow(selectImages+" LIMIT 1", deviceID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Count returns the number of images stored for a device.
func (r *ImageRepository) Count(deviceID string) (int, error) {
	n, err := r.db.count(`SELECT COUNT(*) FROM images WHERE device_id = ?`, deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

// Total returns the number of images across all devices.
func (r *ImageRepository) Total() (int, error) {
	n, err := r.db.count(`SELECT COUNT(*) FROM images`)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

// Exists checks if an image with the given filename exists.
func (r *ImageRepository) Exists(filename string) (bool, error) {
	n, err := r.db.count(`SELECT COUNT(*) FROM images WHERE filename = ?`, filename)
	if err != nil {
		return false, fmt.Errorf("failed to check image existence: %w", err)
	}
	return n > 0, nil
}

// Devices returns a list of unique device ids holding images.
func (r *ImageRepository) Devices() ([]string, error) {
	devices := []string{}
	err := r.db.read(func(conn *sql.DB) error {
		rows, err := conn.Query(`SELECT DISTINCT device_id FROM images ORDER BY device_id`)
		if err != nil {
			return fmt.Errorf("failed to query devices: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var device string
			if err := rows.Scan(&device); err != nil {
				return fmt.Errorf("failed to scan device: %w", err)
			}
			devices = append(devices, device)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// Remove deletes the images stored under filename.
func (r *ImageRepository) Remove(filename string) error {
	if _, err := r.db.write(`DELETE FROM images WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// BulkAppend inserts images in a single transaction. Nothing is inserted
// when any row fails.
func (r *ImageRepository) BulkAppend(images []model.Image) error {
	return r.db.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(insertImage)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, img := range images {
			if _, err := stmt.Exec(img.DeviceID, img.Filename, img.UploadTime.UnixNano(), img.FilePath, img.FileSize); err != nil {
				return fmt.Errorf("failed to insert image %s: %w", img.Filename, err)
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*model.Image, error) {
	var img model.Image
	var uploadTime int64
	if err := s.Scan(&img.ID, &img.DeviceID, &img.Filename, &uploadTime, &img.FilePath, &img.FileSize); err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	img.UploadTime = time.Unix(0, uploadTime)
	return &img, nil
}
