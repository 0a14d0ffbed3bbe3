// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and formatted output.
//
// Loggers are plain values owned by the action that creates them; there is no
// package-level instance. A Logger satisfies dataset.Sink.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If a conversion is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

// ParseLevel maps a level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	logger *log.Logger
	closer io.Closer
}

// New creates a logger writing to w with the specified level and format
func New(level string, format string, w io.Writer) *Logger {
	// Set log flags based on format
	flags := log.LstdFlags
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	return &Logger{
		level:  ParseLevel(level),
		logger: log.New(w, "", flags),
	}
}

// NewFile creates a logger writing to stderr and appending to the file at path.
// The parent directory is created when missing.
func NewFile(level, format, path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := New(level, format, io.MultiWriter(os.Stderr, f))
	l.closer = f
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New("error", "json", io.Discard)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) output(level Level, tag, format string, args ...interface{}) {
	if l == nil || l.level > level {
		return
	}
	msg := fmt.Sprintf(tag+" "+format, args...)
	_ = l.logger.Output(3, msg)
}

// Debug logs a message at DebugLevel
func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(DebugLevel, "[DEBUG]", format, args...)
}

// Info logs a message at InfoLevel
func (l *Logger) Info(format string, args ...interface{}) {
	l.output(InfoLevel, "[INFO]", format, args...)
}

// Warn logs a message at WarnLevel
func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(WarnLevel, "[WARN]", format, args...)
}

// Error logs a message at ErrorLevel
func (l *Logger) Error(format string, args ...interface{}) {
	l.output(ErrorLevel, "[ERROR]", format, args...)
}
