package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
)

// Namespace prefixes every metric name.
const Namespace = "raspi_images"

// statusOther is the heartbeat label for any status a device reports besides
// online and offline. Devices send free-form text, so it is never used as a label.
const statusOther = "other"

// Collector holds the Prometheus metrics of the image backend.
//
// Metrics:
//   - raspi_images_heartbeats_total{status="online|offline|other"}
//   - raspi_images_uploads_total{result}
//   - raspi_images_upload_size_bytes
//   - raspi_images_evicted_total
//   - raspi_images_orphans_removed_total
//   - raspi_images_missing_blobs_pruned_total
//   - raspi_images_devices_expired_total
//   - raspi_images_devices_online, raspi_images_devices_total, raspi_images_stored
type Collector struct {
	registry *prometheus.Registry

	heartbeats     *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	uploadSize     prometheus.Histogram
	evicted        prometheus.Counter
	orphansRemoved prometheus.Counter
	missingPruned  prometheus.Counter
	devicesExpired prometheus.Counter

	devicesOnline prometheus.Gauge
	devicesTotal  prometheus.Gauge
	imagesStored  prometheus.Gauge
}

// NewCollector creates and registers the metrics. A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeats received, by reported status (online, offline or other)",
		}, []string{"status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "uploads_total",
			Help:      "Image uploads, by result",
		}, []string{"result"}),
		uploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of stored uploads in bytes",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to 8MB
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "evicted_total",
			Help:      "Images evicted by the per-device cap",
		}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "orphans_removed_total",
			Help:      "Blobs removed because no ledger record referenced them",
		}),
		missingPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "missing_blobs_pruned_total",
			Help:      "Ledger records removed because their blob was gone",
		}),
		devicesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "devices_expired_total",
			Help:      "Offline devices purged after the staleness threshold",
		}),
		devicesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "devices_online",
			Help:      "Devices currently reporting online",
		}),
		devicesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "devices_total",
			Help:      "Devices currently tracked",
		}),
		imagesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "stored",
			Help:      "Images currently recorded in the ledger",
		}),
	}

	registry.MustRegister(
		c.heartbeats,
		c.uploads,
		c.uploadSize,
		c.evicted,
		c.orphansRemoved,
		c.missingPruned,
		c.devicesExpired,
		c.devicesOnline,
		c.devicesTotal,
		c.imagesStored,
	)

	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordHeartbeat(status string) {
	c.heartbeats.WithLabelValues(heartbeatLabel(status)).Inc()
}

func heartbeatLabel(status string) string {
	switch status {
	case model.StatusOnline, model.StatusOffline:
		return status
	default:
		return statusOther
	}
}

// RecordUpload counts an upload; size is only observed for successful ones.
func (c *Collector) RecordUpload(success bool, size int64) {
	if !success {
		c.uploads.WithLabelValues("error").Inc()
		return
	}
	c.uploads.WithLabelValues("success").Inc()
	c.uploadSize.Observe(float64(size))
}

func (c *Collector) RecordEvicted(n int) {
	c.evicted.Add(float64(n))
}

func (c *Collector) RecordOrphansRemoved(n int) {
	c.orphansRemoved.Add(float64(n))
}

func (c *Collector) RecordMissingPruned(n int) {
	c.missingPruned.Add(float64(n))
}

func (c *Collector) RecordDevicesExpired(n int) {
	c.devicesExpired.Add(float64(n))
}

// SetInventory updates the device and image gauges.
func (c *Collector) SetInventory(online, devices, images int) {
	c.devicesOnline.Set(float64(online))
	c.devicesTotal.Set(float64(devices))
	c.imagesStored.Set(float64(images))
}

// Handler returns the HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
