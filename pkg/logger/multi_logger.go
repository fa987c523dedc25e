package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryLifecycle LogCategory = "lifecycle" // Controller state transitions (JSON)
	CategoryError     LogCategory = "error"     // Failures, including swallowed cleanup errors (JSON)
)

// Categories lists every category written by MultiLogger
var Categories = []LogCategory{CategoryLifecycle, CategoryError}

// ValidCategory reports whether c is a known category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MultiLogger provides categorized logging with one JSON file per category and day
type MultiLogger struct {
	loggers map[LogCategory]*zap.Logger
	files   []*os.File
	config  MultiLoggerConfig
	mu      sync.RWMutex
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	ml := &MultiLogger{
		loggers: make(map[LogCategory]*zap.Logger),
		config:  config,
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	lifecycleLogger, err := ml.createStructuredLogger(CategoryLifecycle, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle logger: %w", err)
	}
	ml.loggers[CategoryLifecycle] = lifecycleLogger

	// Warn so that swallowed cleanup failures are kept too
	errorLogger, err := ml.createStructuredLogger(CategoryError, zapcore.WarnLevel)
	if err != nil {
		ml.Close()
		return nil, fmt.Errorf("failed to create error logger: %w", err)
	}
	ml.loggers[CategoryError] = errorLogger

	return ml, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	file, err := os.OpenFile(categoryLogPath(ml.config.LogsDir, category, time.Now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	ml.files = append(ml.files, file)

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return zap.New(core, zap.Fields(zap.String("category", string(category)))), nil
}

// categoryLogPath generates a log file path for a category and date
func categoryLogPath(logsDir string, category LogCategory, date time.Time) string {
	filename := fmt.Sprintf("%s-%s.log", category, date.Format("20060102"))
	return filepath.Join(logsDir, filename)
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	return ml.loggers[CategoryError]
}

// Lifecycle returns the lifecycle logger
func (ml *MultiLogger) Lifecycle() *zap.Logger {
	return ml.GetLogger(CategoryLifecycle)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogLifecycleEvent logs a controller lifecycle event with structured data
func (ml *MultiLogger) LogLifecycleEvent(event string, fields ...zap.Field) {
	ml.Lifecycle().Info(event, fields...)
}

// LogAppError logs a failure that ended a download
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogAppWarning logs a failure that was not shown to the user
func (ml *MultiLogger) LogAppWarning(msg string, fields ...zap.Field) {
	ml.Error().Warn(msg, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes their files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	for _, f := range ml.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	ml.files = nil
	return lastErr
}
