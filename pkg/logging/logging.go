// Package logging is xtr's process-wide structured logger: a thin
// subsystem-tagged wrapper around log/slog, configured once at startup.
// The signal handler and the num-cpus cache are process-wide too; both
// are set once at startup.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String implements fmt.Stringer.
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
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger *slog.Logger

// Init configures the process-wide logger. It must be called once, before
// any other xtr package logs. Calling it again reconfigures the logger in
// place (used by tests).
func Init(level Level, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
}

func init() {
	Init(LevelInfo, os.Stderr)
}

func logInternal(level Level, subsystem string, err error, messageFmt string, args...interface{}) {
	if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), level.slogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	attrs := make([]slog.Attr, 0, 2)
	attrs = append(attrs, slog.String("subsystem", subsystem))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	defaultLogger.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

// Debug logs a debug-level message tagged with subsystem.
func Debug(subsystem string, messageFmt string, args...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an info-level message tagged with subsystem.
func Info(subsystem string, messageFmt string, args...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning-level message tagged with subsystem.
func Warn(subsystem string, messageFmt string, args...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error-level message tagged with subsystem, attaching err.
func Error(subsystem string, err error, messageFmt string, args...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}
