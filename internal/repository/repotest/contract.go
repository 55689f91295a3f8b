// Package repotest holds behaviour checks shared by every repository implementation.
package repotest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
)

var base = time.Date(2025, 6, 15, 14, 30, 0, 0, time.Local)

func image(deviceID, filename string, offset time.Duration) *model.Image {
	return &model.Image{
		DeviceID:   deviceID,
		Filename:   filename,
		UploadTime: base.Add(offset),
		FilePath:   "/uploads/" + filename,
		FileSize:   1024,
	}
}

func filenames(images []model.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.Filename
	}
	return out
}

// ImageRepository runs the ledger contract against repositories built by newRepo.
func ImageRepository(t *testing.T, newRepo func(t *testing.T) repository.ImageRepository) {
	t.Run("QueryNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(image("cam", "b.png", 2*time.Second)))
		require.NoError(t, repo.Append(image("cam", "a.png", time.Second)))
		require.NoError(t, repo.Append(image("cam", "c.png", 3*time.Second)))
		require.NoError(t, repo.Append(image("other", "x.png", 10*time.Second)))

		images, err := repo.Query("cam")
		require.NoError(t, err)
		assert.Equal(t, []string{"c.png", "b.png", "a.png"}, filenames(images))
		assert.Equal(t, "cam", images[0].DeviceID)
		assert.Equal(t, int64(1024), images[0].FileSize)
		assert.True(t, base.Add(3*time.Second).Equal(images[0].UploadTime))
	})

	t.Run("QueryTiesNewestInsertFirst", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(image("cam", "first.png", 0)))
		require.NoError(t, repo.Append(image("cam", "second.png", 0)))

		images, err := repo.Query("cam")
		require.NoError(t, err)
		assert.Equal(t, []string{"second.png", "first.png"}, filenames(images))

		latest, err := repo.Latest("cam")
		require.NoError(t, err)
		assert.Equal(t, "second.png", latest.Filename)
	})

	t.Run("QueryUnknownDevice", func(t *testing.T) {
		repo := newRepo(t)
		images, err := repo.Query("nobody")
		require.NoError(t, err)
		assert.Empty(t, images)
	})

	t.Run("LatestRegardlessOfInsertionOrder", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(image("cam", "new.png", time.Hour)))
		require.NoError(t, repo.Append(image("cam", "old.png", 0)))

		latest, err := repo.Latest("cam")
		require.NoError(t, err)
		assert.Equal(t, "new.png", latest.Filename)
	})

	t.Run("LatestNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Latest("cam")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("CountsAndDevices", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(image("cam-b", "b1.png", 0)))
		require.NoError(t, repo.Append(image("cam-a", "a1.png", 0)))
		require.NoError(t, repo.Append(image("cam-a", "a2.png", time.Second)))

		n, err := repo.Count("cam-a")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = repo.Count("nobody")
		require.NoError(t, err)
		assert.Zero(t, n)

		total, err := repo.Total()
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		devices, err := repo.Devices()
		require.NoError(t, err)
		assert.Equal(t, []string{"cam-a", "cam-b"}, devices)
	})

	t.Run("RemoveIsNoOpSafe", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(image("cam", "a.png", 0)))
		require.NoError(t, repo.Append(image("cam", "b.png", time.Second)))

		require.NoError(t, repo.Remove("a.png"))
		require.NoError(t, repo.Remove("a.png"))
		require.NoError(t, repo.Remove("missing.png"))

		exists, err := repo.Exists("a.png")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = repo.Exists("b.png")
		require.NoError(t, err)
		assert.True(t, exists)

		total, err := repo.Total()
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("RemoveLastRecordDropsDevice", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(image("cam", "a.png", 0)))
		require.NoError(t, repo.Remove("a.png"))

		devices, err := repo.Devices()
		require.NoError(t, err)
		assert.Empty(t, devices)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := base.Add(time.Duration(i) * time.Second).Format("150405") + ".png"
				assert.NoError(t, repo.Append(image("cam", name, time.Duration(i)*time.Second)))
			}(i)
		}
		wg.Wait()

		n, err := repo.Count("cam")
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	})
}

// DeviceRepository runs the registry storage contract against repositories built by newRepo.
func DeviceRepository(t *testing.T, newRepo func(t *testing.T) repository.DeviceRepository) {
	t.Run("UpsertLastWriteWins", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "pi", Status: model.StatusOnline, LastSeen: base}))
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "pi", Status: model.StatusOffline, LastSeen: base.Add(time.Minute)}))

		devices, err := repo.GetAll()
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, model.StatusOffline, devices["pi"].Status)
		assert.True(t, base.Add(time.Minute).Equal(devices["pi"].LastSeen))
	})

	t.Run("Counts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "a", Status: model.StatusOnline, LastSeen: base}))
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "b", Status: model.StatusOnline, LastSeen: base}))
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "c", Status: model.StatusOffline, LastSeen: base}))

		total, err := repo.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		online, err := repo.CountByStatus(model.StatusOnline)
		require.NoError(t, err)
		assert.Equal(t, 2, online)
	})

	t.Run("ExpireOfflineOnly", func(t *testing.T) {
		repo := newRepo(t)
		old := base.Add(-6 * time.Minute)
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "stale-off", Status: model.StatusOffline, LastSeen: old}))
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "stale-on", Status: model.StatusOnline, LastSeen: old}))
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "fresh-off", Status: model.StatusOffline, LastSeen: base}))

		expired, err := repo.ExpireOffline(base.Add(-5 * time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []string{"stale-off"}, expired)

		devices, err := repo.GetAll()
		require.NoError(t, err)
		assert.NotContains(t, devices, "stale-off")
		assert.Contains(t, devices, "stale-on")
		assert.Contains(t, devices, "fresh-off")

		expired, err = repo.ExpireOffline(base.Add(-5 * time.Minute))
		require.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("GetAllReturnsCopy", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(&model.Device{DeviceID: "pi", Status: model.StatusOnline, LastSeen: base}))

		devices, err := repo.GetAll()
		require.NoError(t, err)
		delete(devices, "pi")

		n, err := repo.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
