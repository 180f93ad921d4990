// Package debug provides logging and profiling for the filter host.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger is the logging surface used across the host. Arguments after the message are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	// LogLevelOff disables all logging.
	LogLevelOff
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseLevel converts a configuration string into a level.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "off", "none":
		return LogLevelOff, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) charm() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// CharmLogger implements Logger on top of charmbracelet/log.
type CharmLogger struct {
	logger *log.Logger
}

var _ Logger = (*CharmLogger)(nil)

// New creates a logger writing to output with the given prefix.
func New(output io.Writer, prefix string, level LogLevel) Logger {
	if level == LogLevelOff {
		return Nop()
	}
	l := log.NewWithOptions(output, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		Level:           level.charm(),
	})
	return &CharmLogger{logger: l}
}

// NewFileLogger creates a logger that appends to a file.
func NewFileLogger(filename, prefix string, level LogLevel) (Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return New(file, prefix, level), file, nil
}

// With returns a logger that adds the key/value pairs to every entry.
func (l *CharmLogger) With(args ...interface{}) Logger {
	return &CharmLogger{logger: l.logger.With(args...)}
}

func (l *CharmLogger) Debug(msg string, args ...interface{}) {
	l.logger.Debug(msg, args...)
}

func (l *CharmLogger) Info(msg string, args ...interface{}) {
	l.logger.Info(msg, args...)
}

func (l *CharmLogger) Warn(msg string, args ...interface{}) {
	l.logger.Warn(msg, args...)
}

func (l *CharmLogger) Error(msg string, args ...interface{}) {
	l.logger.Error(msg, args...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// With attaches key/value pairs when the logger supports it.
func With(l Logger, args ...interface{}) Logger {
	if c, ok := l.(*CharmLogger); ok {
		return c.With(args...)
	}
	return l
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = New(os.Stderr, "filterhost", LogLevelInfo)
)

// Default returns the process-wide logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	if l == nil {
		l = Nop()
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
