package retention

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/storage"
)

// DefaultMaxImages is the number of images kept per device.
const DefaultMaxImages = 20

// BlobStore is the blob storage the engine keeps in sync with the ledger.
type BlobStore interface {
	Put(key string, r io.Reader) (int64, error)
	Delete(key string) error
	Exists(key string) (bool, error)
	ListKeys() ([]string, error)
	Path(key string) string
}

// UploadResult describes a stored image and the images evicted to make room for it.
type UploadResult struct {
	Image   model.Image
	Evicted []model.Image
}

// Engine applies the retention policy: it stores uploads, caps the number of
// images per device and reconciles the blob store with the ledger.
//
// All work for one device runs under that device's lock, so an upload
// (store, append, cap) and a reconciliation never interleave.
type Engine struct {
	store     BlobStore
	ledger    repository.ImageRepository
	maxImages int
	now       func() time.Time
	token     func() string
	locks     *keyedMutex
	logger    *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxImages sets the per-device image cap.
func WithMaxImages(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxImages = n
		}
	}
}

// WithNow sets the clock used for upload times and keys, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l.WithComponent("retention")
	}
}

// NewEngine creates an engine over store and ledger.
func NewEngine(store BlobStore, ledger repository.ImageRepository, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		ledger:    ledger,
		maxImages: DefaultMaxImages,
		now:       time.Now,
		token:     func() string { return uuid.NewString()[:8] },
		locks:     newKeyedMutex(),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxImages returns the per-device image cap.
func (e *Engine) MaxImages() int {
	return e.maxImages
}

// ValidateDeviceID rejects device ids that are empty or cannot prefix a blob key.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return &ValidationError{Field: "device_id", Reason: "is required"}
	}
	if storage.ValidateKey(deviceID) != nil {
		return &ValidationError{Field: "device_id", Reason: "contains invalid characters"}
	}
	return nil
}

// Upload stores the image read from r for deviceID, records it in the ledger and
// evicts the device's oldest images beyond the cap. Nothing is recorded when
// the blob cannot be written.
func (e *Engine) Upload(deviceID string, r io.Reader) (*UploadResult, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(deviceID)
	defer unlock()

	now := e.now()
	key, err := e.deriveKey(deviceID, now)
	if err != nil {
		return nil, err
	}

	size, err := e.store.Put(key, r)
	if err != nil {
		return nil, fmt.Errorf("store image %s: %w", key, err)
	}

	img := model.Image{
		DeviceID:   deviceID,
		Filename:   key,
		UploadTime: now,
		FilePath:   e.store.Path(key),
		FileSize:   size,
	}
	if err := e.ledger.Append(&img); err != nil {
		if delErr := e.store.Delete(key); delErr != nil {
			e.logger.Error("Failed to remove blob %s after ledger error: %v", key, delErr)
		}
		return nil, fmt.Errorf("record image %s: %w", key, err)
	}

	evicted, err := e.enforceCap(deviceID)
	if err != nil {
		// The upload itself succeeded; the next upload retries the eviction.
		e.logger.Error("Cap enforcement for %s failed: %v", deviceID, err)
	}

	e.logger.Info("Stored %s (%d bytes) for %s, evicted %d", key, size, deviceID, len(evicted))
	return &UploadResult{Image: img, Evicted: evicted}, nil
}

// deriveKey returns the key for an upload at now. When the second-granularity key
// is already taken, a random token is appended so no earlier blob is overwritten.
func (e *Engine) deriveKey(deviceID string, now time.Time) (string, error) {
	key := storage.FormatKey(deviceID, now, "")
	for attempt := 0; attempt < 5; attempt++ {
		taken, err := e.keyTaken(key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
		key = storage.FormatKey(deviceID, now, e.token())
	}
	return "", fmt.Errorf("no free key for %s at %s", deviceID, now.Format(storage.KeyTimeLayout))
}

func (e *Engine) keyTaken(key string) (bool, error) {
	inLedger, err := e.ledger.Exists(key)
	if err != nil {
		return false, fmt.Errorf("check ledger for %s: %w", key, err)
	}
	if inLedger {
		return true, nil
	}
	onDisk, err := e.store.Exists(key)
	if err != nil {
		return false, fmt.Errorf("check store for %s: %w", key, err)
	}
	return onDisk, nil
}

// EnforceCap evicts the device's oldest images beyond the cap.
func (e *Engine) EnforceCap(deviceID string) ([]model.Image, error) {
	unlock := e.locks.Lock(deviceID)
	defer unlock()
	return e.enforceCap(deviceID)
}

// enforceCap must be called with the device lock held. Each evicted image loses
// its blob first and its ledger record second, so a crash in between leaves
// an orphaned blob that reconciliation can remove.
func (e *Engine) enforceCap(deviceID string) ([]model.Image, error) {
	records, err := e.ledger.Query(deviceID)
	if err != nil {
		return nil, fmt.Errorf("query images for %s: %w", deviceID, err)
	}
	if len(records) <= e.maxImages {
		return nil, nil
	}

	// records are newest first; evict from the oldest end.
	var evicted []model.Image
	for i := len(records) - 1; i >= e.maxImages; i-- {
		img := records[i]
		if err := e.store.Delete(img.Filename); err != nil {
			e.logger.Error("Failed to evict blob %s: %v", img.Filename, err)
			continue
		}
		if err := e.ledger.Remove(img.Filename); err != nil {
			e.logger.Error("Failed to remove ledger record %s: %v", img.Filename, err)
			continue
		}
		evicted = append(evicted, img)
	}
	return evicted, nil
}

// ReconcileOrphans deletes the device's blobs that have no ledger record and
// returns how many were removed. Blobs of other devices are never touched,
// including devices whose id merely starts with deviceID.
func (e *Engine) ReconcileOrphans(deviceID string) (int, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return 0, err
	}

	unlock := e.locks.Lock(deviceID)
	defer unlock()

	keys, err := e.store.ListKeys()
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}

	records, err := e.ledger.Query(deviceID)
	if err != nil {
		return 0, fmt.Errorf("query images for %s: %w", deviceID, err)
	}
	known := make(map[string]struct{}, len(records))
	for _, img := range records {
		known[img.Filename] = struct{}{}
	}

	removed := 0
	for _, key := range keys {
		if !storage.BelongsTo(key, deviceID) {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		if err := e.store.Delete(key); err != nil {
			e.logger.Warning("Failed to remove orphaned blob %s: %v", key, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		e.logger.Info("Removed %d orphaned blobs for %s", removed, deviceID)
	}
	return removed, nil
}

// PruneMissing removes the device's ledger records whose blob no longer exists.
func (e *Engine) PruneMissing(deviceID string) ([]model.Image, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(deviceID)
	defer unlock()

	records, err := e.ledger.Query(deviceID)
	if err != nil {
		return nil, fmt.Errorf("query images for %s: %w", deviceID, err)
	}

	var pruned []model.Image
	for _, img := range records {
		exists, err := e.store.Exists(img.Filename)
		if err != nil {
			e.logger.Warning("Failed to check blob %s: %v", img.Filename, err)
			continue
		}
		if exists {
			continue
		}
		if err := e.ledger.Remove(img.Filename); err != nil {
			e.logger.Warning("Failed to remove ledger record %s: %v", img.Filename, err)
			continue
		}
		pruned = append(pruned, img)
	}

	if len(pruned) > 0 {
		e.logger.Info("Pruned %d ledger records without blobs for %s", len(pruned), deviceID)
	}
	return pruned, nil
}

// ForgetBlob drops the ledger record of key if its blob is really gone.
// It reports whether a record was removed. Keys that are not image keys are ignored.
func (e *Engine) ForgetBlob(key string) (bool, error) {
	deviceID, _, ok := storage.ParseKey(key)
	if !ok {
		return false, nil
	}

	unlock := e.locks.Lock(deviceID)
	defer unlock()

	exists, err := e.store.Exists(key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	known, err := e.ledger.Exists(key)
	if err != nil || !known {
		return false, err
	}
	if err := e.ledger.Remove(key); err != nil {
		return false, fmt.Errorf("remove ledger record %s: %w", key, err)
	}
	e.logger.Info("Ledger record %s removed, blob deleted out-of-band", key)
	return true, nil
}

// Latest returns the device's newest image.
func (e *Engine) Latest(deviceID string) (*model.Image, error) {
	img, err := e.ledger.Latest(deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("latest image for %s: %w", deviceID, err)
	}
	return img, nil
}

// Images returns up to limit of the device's images, newest first. limit <= 0 means all.
func (e *Engine) Images(deviceID string, limit int) ([]model.Image, error) {
	records, err := e.ledger.Query(deviceID)
	if err != nil {
		return nil, fmt.Errorf("query images for %s: %w", deviceID, err)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Total returns the number of images across all devices.
func (e *Engine) Total() (int, error) {
	return e.ledger.Total()
}

// Devices returns the ids of devices holding images.
func (e *Engine) Devices() ([]string, error) {
	return e.ledger.Devices()
}
