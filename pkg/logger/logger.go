// Package logger provides the leveled logger shared by the compiler packages.
//
// It wraps zerolog so components can either use the package-level helpers or
// take a zerolog.Logger for structured per-fragment fields.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging level.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return ""
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

// ParseLevel converts a configuration string ("debug", "info", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "none", "off", "disabled":
		return LevelNone, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the output encoding.
type Format string

// Output formats.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Logger provides logging functionality.
type Logger struct {
	mu     sync.Mutex
	level  Level
	format Format
	output io.Writer
	zl     zerolog.Logger
}

var defaultLogger = New(os.Stderr, LevelInfo)

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// New creates a new console logger.
func New(output io.Writer, level Level) *Logger {
	return NewWithFormat(output, level, FormatConsole)
}

// NewWithFormat creates a new logger writing in the given format.
func NewWithFormat(output io.Writer, level Level, format Format) *Logger {
	l := &Logger{level: level, format: format, output: output}
	l.rebuild()
	return l
}

func (l *Logger) rebuild() {
	var w io.Writer = l.output
	if l.format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: l.output, TimeFormat: time.TimeOnly, NoColor: true}
	}
	l.zl = zerolog.New(w).Level(l.level.zerolog()).With().
		Timestamp().
		Str("component", "gofhir-typegraph").
		Logger()
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuild()
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// Zerolog returns the underlying structured logger.
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	zl := l.zl
	l.mu.Unlock()

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = zl.Debug()
	case LevelInfo:
		ev = zl.Info()
	case LevelWarn:
		ev = zl.Warn()
	default:
		ev = zl.Error()
	}
	ev.Msgf(format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Package-level convenience functions.

// Debug logs a debug message using the default logger.
func Debug(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...any) {
	defaultLogger.Error(format, args...)
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// SetOutput sets the output of the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// Disable disables all logging.
func Disable() {
	defaultLogger.SetLevel(LevelNone)
}

// Z returns the default logger's zerolog instance.
func Z() zerolog.Logger {
	return defaultLogger.Zerolog()
}
