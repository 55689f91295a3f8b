package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/metrics"
	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/device"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/retention"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/storage"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/websocket"
)

// Manager ties the device registry and the retention engine to metrics and
// the viewer event hub. HTTP handlers talk to the Manager only.
type Manager struct {
	registry *device.Registry
	engine   *retention.Engine
	hub      *websocket.HubService
	metrics  *metrics.Collector
	logger   *logger.Logger
}

func NewManager(registry *device.Registry, engine *retention.Engine, hub *websocket.HubService,
	collector *metrics.Collector, log *logger.Logger) *Manager {
	return &Manager{
		registry: registry,
		engine:   engine,
		hub:      hub,
		metrics:  collector,
		logger:   log.WithComponent("manager"),
	}
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

func (m *Manager) GetMetrics() *metrics.Collector {
	return m.metrics
}

// Heartbeat records the reported status of a device.
func (m *Manager) Heartbeat(deviceID, status string) (model.Device, error) {
	dev, err := m.registry.RecordHeartbeat(deviceID, status)
	if err != nil {
		return model.Device{}, err
	}

	m.metrics.RecordHeartbeat(status)
	m.hub.Publish(dto.Event{Type: dto.EventHeartbeat, DeviceID: deviceID, Status: status, Time: dev.LastSeen})
	return dev, nil
}

// Devices purges stale offline devices and returns the rest.
func (m *Manager) Devices() (map[string]model.Device, error) {
	devices, expired, err := m.registry.SnapshotAndExpire()
	m.reportExpired(expired)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (m *Manager) reportExpired(expired []string) {
	if len(expired) == 0 {
		return
	}
	m.metrics.RecordDevicesExpired(len(expired))
	for _, id := range expired {
		m.logger.Info("Device %s expired after going offline", id)
		m.hub.Publish(dto.Event{Type: dto.EventDeviceExpired, DeviceID: id})
	}
}

// UploadImage stores an image for the device and applies the retention cap.
func (m *Manager) UploadImage(deviceID string, r io.Reader) (*model.Image, error) {
	result, err := m.engine.Upload(deviceID, r)
	if err != nil {
		if !errors.Is(err, retention.ErrValidation) {
			m.metrics.RecordUpload(false, 0)
			m.logger.Error("Upload for %s failed: %v", deviceID, err)
		}
		return nil, err
	}

	m.metrics.RecordUpload(true, result.Image.FileSize)
	m.metrics.RecordEvicted(len(result.Evicted))

	info := dto.NewImageInfo(result.Image)
	m.hub.Publish(dto.Event{Type: dto.EventImageUploaded, DeviceID: deviceID, Image: &info, Time: result.Image.UploadTime})
	for _, img := range result.Evicted {
		evicted := dto.NewImageInfo(img)
		m.hub.Publish(dto.Event{Type: dto.EventImageEvicted, DeviceID: deviceID, Image: &evicted})
	}

	return &result.Image, nil
}

// Images returns up to limit of the device's newest images.
func (m *Manager) Images(deviceID string, limit int) ([]model.Image, error) {
	return m.engine.Images(deviceID, limit)
}

// LatestImage returns the device's newest image or repository.ErrNotFound.
func (m *Manager) LatestImage(deviceID string) (*model.Image, error) {
	return m.engine.Latest(deviceID)
}

// CleanupOrphaned removes the device's blobs without ledger records, then the
// ledger records without blobs. It returns both counts.
func (m *Manager) CleanupOrphaned(deviceID string) (removed, missing int, err error) {
	removed, err = m.engine.ReconcileOrphans(deviceID)
	if err != nil {
		return 0, 0, err
	}
	m.metrics.RecordOrphansRemoved(removed)

	pruned, err := m.engine.PruneMissing(deviceID)
	if err != nil {
		return removed, 0, err
	}
	m.metrics.RecordMissingPruned(len(pruned))

	m.hub.Publish(dto.Event{Type: dto.EventCleanup, DeviceID: deviceID, Count: removed + len(pruned)})
	return removed, len(pruned), nil
}

// HandleBlobGone is called when a blob disappears from the store directory.
func (m *Manager) HandleBlobGone(key string) {
	removed, err := m.engine.ForgetBlob(key)
	if err != nil {
		m.logger.Warning("Failed to reconcile removed blob %s: %v", key, err)
		return
	}
	if !removed {
		return
	}

	m.metrics.RecordMissingPruned(1)
	if deviceID, ts, ok := storage.ParseKey(key); ok {
		m.hub.Publish(dto.Event{
			Type:     dto.EventImageMissing,
			DeviceID: deviceID,
			Image:    &dto.ImageInfo{Filename: key, UploadTime: ts, URL: dto.StaticPrefix + key},
		})
	}
}

// Status summarizes devices and images and refreshes the inventory gauges.
func (m *Manager) Status() (dto.StatusData, error) {
	online, err := m.registry.CountOnline()
	if err != nil {
		return dto.StatusData{}, fmt.Errorf("count online devices: %w", err)
	}
	total, err := m.registry.Total()
	if err != nil {
		return dto.StatusData{}, fmt.Errorf("count devices: %w", err)
	}
	images, err := m.engine.Total()
	if err != nil {
		return dto.StatusData{}, fmt.Errorf("count images: %w", err)
	}

	m.metrics.SetInventory(online, total, images)
	return dto.StatusData{
		OnlineDevices: online,
		TotalDevices:  total,
		TotalImages:   images,
		Timestamp:     time.Now(),
	}, nil
}

// Sweep expires stale devices and drops ledger records whose blob is gone.
// It never deletes blobs; orphaned blobs are only removed by CleanupOrphaned.
func (m *Manager) Sweep(ctx context.Context) error {
	var errs []error

	expired, err := m.registry.Expire()
	if err != nil {
		errs = append(errs, err)
	}
	m.reportExpired(expired)

	devices, err := m.engine.Devices()
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list devices: %w", err))...)
	}

	for _, id := range devices {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		pruned, err := m.engine.PruneMissing(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("prune %s: %w", id, err))
			continue
		}
		m.metrics.RecordMissingPruned(len(pruned))
		for _, img := range pruned {
			info := dto.NewImageInfo(img)
			m.hub.Publish(dto.Event{Type: dto.EventImageMissing, DeviceID: id, Image: &info})
		}
	}

	if _, err := m.Status(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
