// Package logging provides line-oriented structured logging for the DroneEdit
// agent. Records are formatted as "timestamp - LEVEL - caller - message" and
// written to an append-mode log file and, optionally, echoed to the console.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// LevelCritical sits above slog.LevelError for failures that end an
// automated flow (exhausted host connection, unusable front-end chain).
const LevelCritical = slog.Level(12)

// Options configures New.
type Options struct {
	Level   string // DEBUG, INFO, WARNING, ERROR, CRITICAL (case-insensitive)
	File    string // append-mode log file; empty disables the file sink
	Console bool   // echo to stdout/stderr
	Stdout  io.Writer
	Stderr  io.Writer
}

// New builds a logger from opts. The returned closer releases the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var file *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
	}

	sinks := Sinks{}
	if file != nil {
		sinks.File = file
	}
	if opts.Console {
		sinks.Stdout = opts.Stdout
		sinks.Stderr = opts.Stderr
		if sinks.Stdout == nil {
			sinks.Stdout = os.Stdout
		}
		if sinks.Stderr == nil {
			sinks.Stderr = os.Stderr
		}
	}

	handler := NewLineHandler(sinks, ParseLevel(opts.Level))
	closer := io.Closer(nopCloser{})
	if file != nil {
		closer = file
	}
	return slog.New(handler), closer, nil
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// resolve to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL", "FATAL":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// LevelName renders a level the way the log sink spells it.
func LevelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRITICAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Critical logs at LevelCritical, attributing the record to the caller.
func Critical(logger *slog.Logger, msg string, args ...any) {
	ctx := context.Background()
	if !logger.Enabled(ctx, LevelCritical) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), LevelCritical, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}

// Discard returns a logger that drops everything. Useful for tests and for
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelCritical + 1}))
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// WithComponent returns a logger with component attribute
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithTaskID returns a logger with task_id attribute
func WithTaskID(logger *slog.Logger, taskID string) *slog.Logger {
	return logger.With("task_id", taskID)
}

// SanitizeToken masks a token for safe logging.
// Shows first 4 and last 4 characters only.
// Returns "****" for tokens shorter than 8 characters.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath replaces the home directory prefix with ~.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
