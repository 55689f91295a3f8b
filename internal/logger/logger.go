package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Phill981/PrevexRaspiBackend/internal/config"
)

// FileName is the name of the log file written inside the log directory.
const FileName = "server.log"

// Logger provides leveled logging (info/warning/error) to a log file and stdout.
type Logger struct {
	zl     zerolog.Logger
	logDir string
	mu     *sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := openLogFile(filepath.Join(cfg.LogDirectory, FileName))
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	writer := zerolog.MultiLevelWriter(console, file)

	return &Logger{
		zl:     zerolog.New(writer).Level(level).With().Timestamp().Logger(),
		logDir: cfg.LogDirectory,
		mu:     &sync.Mutex{},
	}, nil
}

// New wraps an existing zerolog logger. logDir may be empty.
func New(zl zerolog.Logger, logDir string) *Logger {
	return &Logger{zl: zl, logDir: logDir, mu: &sync.Mutex{}}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(zerolog.Nop(), "")
}

// openLogFile opens or creates a log file for appending.
func openLogFile(filename string) (io.Writer, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl:     l.zl.With().Str("component", component).Logger(),
		logDir: l.logDir,
		mu:     l.mu,
	}
}

// Zerolog exposes the underlying logger for structured fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// LogPath returns the path of the log file, or "" when logging to no file.
func (l *Logger) LogPath() string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, FileName)
}

// CleanLogs truncates the log file.
func (l *Logger) CleanLogs() error {
	path := l.LogPath()
	if path == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(path, 0); err != nil {
		l.Error("Error truncating log file: %v", err)
		return err
	}

	l.Info("Log file has been cleared.")
	return nil
}
