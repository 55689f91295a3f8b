package route

import (
	"net/http"

	"github.com/Phill981/PrevexRaspiBackend/internal/config"
	"github.com/Phill981/PrevexRaspiBackend/internal/dto"
	"github.com/Phill981/PrevexRaspiBackend/internal/handler"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
	"github.com/Phill981/PrevexRaspiBackend/internal/middleware"
	"github.com/Phill981/PrevexRaspiBackend/internal/service"
)

// SetupRoutes registers the API endpoints, the blob file server, metrics and
// log endpoints, and wraps the mux with CORS and request logging.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Stored images
	mux.Handle(dto.StaticPrefix, http.StripPrefix(dto.StaticPrefix, http.FileServer(http.Dir(cfg.ImageDirectory))))

	mux.HandleFunc("GET /{$}", handler.RootHandler(logger))
	mux.HandleFunc("GET /api/health", handler.HealthHandler(logger))
	mux.HandleFunc("GET /api/status", handler.StatusHandler(manager, logger))

	// Devices
	mux.HandleFunc("POST /api/heartbeat", handler.HeartbeatHandler(manager, logger))
	mux.HandleFunc("GET /api/devices", handler.DevicesHandler(manager, logger))

	// Images
	mux.HandleFunc("POST /api/upload-image", handler.UploadImageHandler(manager, cfg, logger))
	mux.HandleFunc("GET /api/images/{device_id}", handler.ImagesHandler(manager, logger))
	mux.HandleFunc("GET /api/images/{device_id}/latest", handler.LatestImageHandler(manager, logger))
	mux.HandleFunc("POST /api/cleanup-orphaned", handler.CleanupOrphanedHandler(manager, logger))

	mux.HandleFunc("GET /api/events", handler.EventsWebsocketHandler(manager, logger))
	mux.Handle("GET /metrics", manager.GetMetrics().Handler())

	// Log endpoints
	mux.HandleFunc("GET /logs", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/clear", handler.ClearLogsHandler(logger))

	// Apply middleware
	return middleware.RequestLogger(logger)(middleware.CORS(cfg.AllowedOrigins)(mux))
}
