package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ledger backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port                int           `yaml:"port"`
	ImageDirectory      string        `yaml:"image_dir"`
	LedgerBackend       string        `yaml:"ledger_backend"` // memory (process lifetime) or sqlite
	DatabasePath        string        `yaml:"database_path"`
	MaxImagesPerDevice  int           `yaml:"max_images_per_device"`
	OfflineDeviceTTL    time.Duration `yaml:"offline_device_ttl"` // Offline devices older than this are purged
	SweepSchedule       string        `yaml:"sweep_schedule"`     // Cron expression, empty (default) disables the sweep
	WatchImageDirectory bool          `yaml:"watch_image_dir"`
	MaxUploadSize       int64         `yaml:"max_upload_size"` // Bytes
	AllowedOrigins      []string      `yaml:"allowed_origins"`
	LogDirectory        string        `yaml:"log_dir"`
	LogLevel            string        `yaml:"log_level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:                8000,
		ImageDirectory:      filepath.Join(".", "uploads"),
		LedgerBackend:       BackendMemory,
		DatabasePath:        filepath.Join(".", "data", "ledger.db"),
		MaxImagesPerDevice:  20,
		OfflineDeviceTTL:    5 * time.Minute,
		SweepSchedule:       "",
		WatchImageDirectory: true,
		MaxUploadSize:       32 << 20,
		AllowedOrigins:      []string{"*"},
		LogDirectory:        filepath.Join(".", "logs"),
		LogLevel:            "info",
	}
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE,
// and finally environment variables, which take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnvAsInt("PORT", cfg.Port)
	cfg.ImageDirectory = getEnv("IMAGE_DIR", cfg.ImageDirectory)
	cfg.LedgerBackend = getEnv("LEDGER_BACKEND", cfg.LedgerBackend)
	cfg.DatabasePath = getEnv("DB_PATH", cfg.DatabasePath)
	cfg.MaxImagesPerDevice = getEnvAsInt("MAX_IMAGES_PER_DEVICE", cfg.MaxImagesPerDevice)
	cfg.OfflineDeviceTTL = getEnvAsDuration("OFFLINE_DEVICE_TTL", cfg.OfflineDeviceTTL)
	cfg.SweepSchedule = getEnv("SWEEP_SCHEDULE", cfg.SweepSchedule)
	cfg.WatchImageDirectory = getEnvAsBool("WATCH_IMAGE_DIR", cfg.WatchImageDirectory)
	cfg.MaxUploadSize = getEnvAsInt64("MAX_UPLOAD_SIZE", cfg.MaxUploadSize)
	cfg.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.LogDirectory = getEnv("LOG_DIR", cfg.LogDirectory)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

// Validate checks that the configuration can be used to start the server.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ImageDirectory == "" {
		errs = append(errs, errors.New("image directory is required"))
	}
	switch c.LedgerBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("database path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.LedgerBackend))
	}
	if c.MaxImagesPerDevice <= 0 {
		errs = append(errs, fmt.Errorf("max images per device must be positive, got %d", c.MaxImagesPerDevice))
	}
	if c.OfflineDeviceTTL <= 0 {
		errs = append(errs, fmt.Errorf("offline device ttl must be positive, got %s", c.OfflineDeviceTTL))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
