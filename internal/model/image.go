package model

import "time"

// Image represents an image record kept in the ledger.
type Image struct {
	ID         int64     `json:"-"`
	DeviceID   string    `json:"device_id"`
	Filename   string    `json:"filename"`
	UploadTime time.Time `json:"upload_time"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
}
