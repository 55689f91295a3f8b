package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/metrics"
	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository/memory"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/device"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/retention"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/storage"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/websocket"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type managerFixture struct {
	manager *Manager
	store   *storage.BlobStore
	clock   *testClock
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)}
	registry := device.NewRegistry(memory.NewDeviceRepository(), device.WithNow(clock.Now))
	engine := retention.NewEngine(store, memory.NewImageRepository(), retention.WithMaxImages(3))
	hub := websocket.NewHubService(logger.Nop())

	return &managerFixture{
		manager: NewManager(registry, engine, hub, metrics.NewCollector(nil), logger.Nop()),
		store:   store,
		clock:   clock,
	}
}

func TestManager_HeartbeatAndDevices(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Heartbeat("pi-1", model.StatusOnline)
	require.NoError(t, err)
	_, err = f.manager.Heartbeat("pi-2", model.StatusOffline)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(6 * time.Minute)

	devices, err := f.manager.Devices()
	require.NoError(t, err)
	assert.Contains(t, devices, "pi-1")
	assert.NotContains(t, devices, "pi-2")

	status, err := f.manager.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.OnlineDevices)
	assert.Equal(t, 1, status.TotalDevices)
}

func TestManager_HeartbeatRequiresDevice(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Heartbeat("", model.StatusOnline)
	assert.ErrorIs(t, err, device.ErrInvalidDevice)
}

func TestManager_UploadAppliesCap(t *testing.T) {
	f := newManagerFixture(t)

	for i := 0; i < 5; i++ {
		_, err := f.manager.UploadImage("cam", strings.NewReader("img"))
		require.NoError(t, err)
	}

	images, err := f.manager.Images("cam", 20)
	require.NoError(t, err)
	assert.Len(t, images, 3)

	latest, err := f.manager.LatestImage("cam")
	require.NoError(t, err)
	assert.Equal(t, images[0].Filename, latest.Filename)

	status, err := f.manager.Status()
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalImages)

	expected := `
# HELP raspi_images_evicted_total Images evicted by the per-device cap
# TYPE raspi_images_evicted_total counter
raspi_images_evicted_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(f.manager.GetMetrics().Registry(),
		strings.NewReader(expected), "raspi_images_evicted_total"))
}

func TestManager_UploadValidation(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.UploadImage("", strings.NewReader("img"))
	assert.ErrorIs(t, err, retention.ErrValidation)
}

func TestManager_LatestNotFound(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.LatestImage("cam")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestManager_CleanupOrphaned(t *testing.T) {
	f := newManagerFixture(t)

	gone, err := f.manager.UploadImage("cam", strings.NewReader("img"))
	require.NoError(t, err)
	_, err = f.store.Put("cam-20200101_000000.png", strings.NewReader("stray"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.store.Path(gone.Filename)))

	removed, missing, err := f.manager.CleanupOrphaned("cam")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, missing)

	images, err := f.manager.Images("cam", 20)
	require.NoError(t, err)
	assert.Empty(t, images)

	removed, missing, err = f.manager.CleanupOrphaned("cam")
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Zero(t, missing)
}

func TestManager_HandleBlobGone(t *testing.T) {
	f := newManagerFixture(t)

	img, err := f.manager.UploadImage("cam", strings.NewReader("img"))
	require.NoError(t, err)

	f.manager.HandleBlobGone(img.Filename)
	images, err := f.manager.Images("cam", 20)
	require.NoError(t, err)
	assert.Len(t, images, 1, "blob still present, record kept")

	require.NoError(t, os.Remove(f.store.Path(img.Filename)))
	f.manager.HandleBlobGone(img.Filename)

	_, err = f.manager.LatestImage("cam")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestManager_Sweep(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Heartbeat("old", model.StatusOffline)
	require.NoError(t, err)
	kept, err := f.manager.UploadImage("cam", strings.NewReader("img"))
	require.NoError(t, err)
	gone, err := f.manager.UploadImage("cam", strings.NewReader("img"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.store.Path(gone.Filename)))
	_, err = f.store.Put("cam-20200101_000000.png", strings.NewReader("stray"))
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(10 * time.Minute)
	require.NoError(t, f.manager.Sweep(context.Background()))

	devices, err := f.manager.Devices()
	require.NoError(t, err)
	assert.Empty(t, devices)

	images, err := f.manager.Images("cam", 0)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, kept.Filename, images[0].Filename)

	exists, err := f.store.Exists("cam-20200101_000000.png")
	require.NoError(t, err)
	assert.True(t, exists, "sweep must not delete unrecorded blobs")
}

func TestManager_SweepKeepsUnrecordedBlobsUntilCleanup(t *testing.T) {
	f := newManagerFixture(t)

	const stray = "cam-20240101_000000.png"
	_, err := f.store.Put(stray, strings.NewReader("from a previous run"))
	require.NoError(t, err)
	_, err = f.manager.UploadImage("cam", strings.NewReader("img"))
	require.NoError(t, err)

	require.NoError(t, f.manager.Sweep(context.Background()))

	exists, err := f.store.Exists(stray)
	require.NoError(t, err)
	assert.True(t, exists)

	removed, missing, err := f.manager.CleanupOrphaned("cam")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, missing)

	exists, err = f.store.Exists(stray)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManager_SweepStopsOnCancelledContext(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.UploadImage("cam", strings.NewReader("img"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.manager.Sweep(ctx), context.Canceled)
}
