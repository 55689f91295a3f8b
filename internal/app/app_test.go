package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phill981/PrevexRaspiBackend/internal/config"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Port = 0
	cfg.ImageDirectory = filepath.Join(dir, "uploads")
	cfg.DatabasePath = filepath.Join(dir, "data", "ledger.db")
	cfg.LogDirectory = filepath.Join(dir, "logs")
	cfg.LedgerBackend = backend
	return cfg
}

func TestNewApp_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			a, err := NewApp(testConfig(t, backend), logger.Nop())
			require.NoError(t, err)
			defer a.Close()

			_, err = a.Manager().Heartbeat("pi", "online")
			require.NoError(t, err)
			_, err = a.Manager().UploadImage("pi", strings.NewReader("img"))
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/pi", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "pi-")
		})
	}
}

func TestRunContext_ShutsDown(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	cfg.SweepSchedule = "@every 1h"

	a, err := NewApp(cfg, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Nil(t, a.db, "database closed on shutdown")
}
