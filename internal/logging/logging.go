// Package logging provides structured logging functionality using Go's slog package.
// It supports both text and JSON output formats, configurable log levels,
// and domain-specific helpers for the netmapper scan engine.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// File permissions for directories and log files.
	logDirPerm  = 0750
	logFilePerm = 0600
)

// LogLevel represents the available log levels.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the available log formats.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// Config holds logging configuration.
type Config struct {
	Level     LogLevel  `yaml:"level" json:"level"`
	Format    LogFormat `yaml:"format" json:"format"`
	Output    string    `yaml:"output" json:"output"`
	AddSource bool      `yaml:"add_source" json:"add_source"`
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Format:    FormatText,
		Output:    "stderr",
		AddSource: false,
	}
}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	config Config
}

// New creates a new structured logger with the given configuration.
func New(cfg Config) (*Logger, error) {
	var level slog.Level
	switch strings.ToLower(string(cfg.Level)) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		// Assume it's a file path
		if err := os.MkdirAll(filepath.Dir(cfg.Output), logDirPerm); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return nil, err
		}
		writer = file
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: cfg,
	}, nil
}

// NewDefault creates a logger with default configuration.
func NewDefault() *Logger {
	logger, _ := New(DefaultConfig())
	return logger
}

// WithFields adds structured fields to the logger.
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.With(fields...),
		config: l.config,
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithSessionID adds a scan session ID field to the logger.
func (l *Logger) WithSessionID(sessionID string) *Logger {
	return l.WithFields("session_id", sessionID)
}

// WithTarget adds a target field to the logger.
func (l *Logger) WithTarget(target string) *Logger {
	return l.WithFields("target", target)
}

// InfoProbe logs probe-related information for a target.
func (l *Logger) InfoProbe(msg, target string, fields ...any) {
	allFields := append([]any{"target", target}, fields...)
	l.Info(msg, allFields...)
}

// WarnProbe logs probe-related warnings for a target.
func (l *Logger) WarnProbe(msg, target string, err error, fields ...any) {
	allFields := append([]any{"target", target, "error", err}, fields...)
	l.Warn(msg, allFields...)
}

// InfoSession logs session-related information.
func (l *Logger) InfoSession(msg, sessionID string, fields ...any) {
	allFields := append([]any{"session_id", sessionID}, fields...)
	l.Info(msg, allFields...)
}

// ErrorSession logs session-related errors.
func (l *Logger) ErrorSession(msg, sessionID string, err error, fields ...any) {
	allFields := append([]any{"session_id", sessionID, "error", err}, fields...)
	l.Error(msg, allFields...)
}

// WarnVendor logs vendor resolution warnings.
func (l *Logger) WarnVendor(msg, prefix string, err error, fields ...any) {
	allFields := append([]any{"component", "macvendor", "prefix", prefix, "error", err}, fields...)
	l.Warn(msg, allFields...)
}

// Global logger instance - can be replaced for testing.
var defaultLogger = NewDefault()

// SetDefault sets the default logger instance.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Default returns the default logger instance.
func Default() *Logger {
	return defaultLogger
}

// Debug logs at debug level using the default logger.
func Debug(msg string, fields ...any) {
	defaultLogger.Debug(msg, fields...)
}

// Info logs at info level using the default logger.
func Info(msg string, fields ...any) {
	defaultLogger.Info(msg, fields...)
}

// Warn logs at warn level using the default logger.
func Warn(msg string, fields ...any) {
	defaultLogger.Warn(msg, fields...)
}

// Error logs at error level using the default logger.
func Error(msg string, fields ...any) {
	defaultLogger.Error(msg, fields...)
}

// InfoProbe logs probe-related information using the default logger.
func InfoProbe(msg, target string, fields ...any) {
	defaultLogger.InfoProbe(msg, target, fields...)
}

// WarnProbe logs probe-related warnings using the default logger.
func WarnProbe(msg, target string, err error, fields ...any) {
	defaultLogger.WarnProbe(msg, target, err, fields...)
}

// InfoSession logs session-related information using the default logger.
func InfoSession(msg, sessionID string, fields ...any) {
	defaultLogger.InfoSession(msg, sessionID, fields...)
}

// ErrorSession logs session-related errors using the default logger.
func ErrorSession(msg, sessionID string, err error, fields ...any) {
	defaultLogger.ErrorSession(msg, sessionID, err, fields...)
}

// WarnVendor logs vendor resolution warnings using the default logger.
func WarnVendor(msg, prefix string, err error, fields ...any) {
	defaultLogger.WarnVendor(msg, prefix, err, fields...)
}
