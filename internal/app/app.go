package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Phill981/PrevexRaspiBackend/internal/config"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/metrics"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository/memory"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository/sqlite"
	"github.com/Phill981/PrevexRaspiBackend/internal/route"
	"github.com/Phill981/PrevexRaspiBackend/internal/service"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/device"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/retention"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/storage"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	blobStore  *storage.BlobStore
	hubService *websocket.HubService
	scheduler  *retention.Scheduler
	manager    *service.Manager
	handler    http.Handler
}

// NewApp wires the repositories, services and routes described by cfg.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log}

	imageRepo, deviceRepo, err := a.openRepositories()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewBlobStore(cfg.ImageDirectory)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := device.NewRegistry(deviceRepo, device.WithOfflineTTL(cfg.OfflineDeviceTTL))
	engine := retention.NewEngine(store, imageRepo,
		retention.WithMaxImages(cfg.MaxImagesPerDevice),
		retention.WithLogger(log),
	)
	hub := websocket.NewHubService(log)
	collector := metrics.NewCollector(nil)

	a.blobStore = store
	a.hubService = hub
	a.manager = service.NewManager(registry, engine, hub, collector, log)
	a.scheduler = retention.NewScheduler(a.manager, cfg.SweepSchedule, log)
	a.handler = route.SetupRoutes(a.manager, cfg, log)
	return a, nil
}

func (a *App) openRepositories() (repository.ImageRepository, repository.DeviceRepository, error) {
	if a.config.LedgerBackend != config.BackendSQLite {
		return memory.NewImageRepository(), memory.NewDeviceRepository(), nil
	}

	if err := os.MkdirAll(filepath.Dir(a.config.DatabasePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(a.config.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	a.db = db
	return sqlite.NewImageRepository(db), sqlite.NewDeviceRepository(db), nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Manager returns the service manager.
func (a *App) Manager() *service.Manager {
	return a.manager
}

// Run starts the background services and serves HTTP until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) RunContext(ctx context.Context) error {
	defer a.Close()

	// Start background services
	go a.hubService.Run(ctx)

	if a.config.WatchImageDirectory {
		watcher, err := storage.NewWatcher(a.blobStore, a.logger)
		if err != nil {
			a.logger.Warning("Blob watcher disabled: %v", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, a.manager.HandleBlobGone); err != nil {
					a.logger.Error("Blob watcher exited: %v", err)
				}
			}()
		}
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Raspberry Pi Image API listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Images: %s, ledger: %s, cap: %d per device",
		a.config.ImageDirectory, a.config.LedgerBackend, a.config.MaxImagesPerDevice)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.scheduler.Stop()
	return nil
}

// Close releases the database, if any.
func (a *App) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.db = nil
}
