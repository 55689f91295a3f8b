package dto

import (
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
)

// StaticPrefix is the URL prefix under which blobs are served.
const StaticPrefix = "/static/"

// ImageInfo is the public rendering of an image record.
type ImageInfo struct {
	Filename   string    `json:"filename"`
	UploadTime time.Time `json:"upload_time"`
	URL        string    `json:"url"`
}

// NewImageInfo renders img with its static URL.
func NewImageInfo(img model.Image) ImageInfo {
	return ImageInfo{
		Filename:   img.Filename,
		UploadTime: img.UploadTime,
		URL:        StaticPrefix + img.Filename,
	}
}

// ImagesData is the payload of the image listing.
type ImagesData struct {
	Images []ImageInfo `json:"images"`
}
