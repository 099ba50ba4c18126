// Package logging provides leveled slog construction for the command line
// and an optional JSONL trace of every simulated cycle.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LevelTrace is a custom slog level below Debug that also enables the
// per-cycle trace.
const LevelTrace = slog.LevelDebug - 4

// Output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel maps a level name to a slog.Level. Supported values: "trace",
// "debug", "info", "warn", "error" (case-insensitive). Unknown values default
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled logger writing text or JSON records to w.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// CycleTrace appends one JSON line per record to a file. It is safe for
// concurrent use, and a nil *CycleTrace ignores every call.
type CycleTrace struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenCycleTrace opens path for append, creating parent directories.
func OpenCycleTrace(path string) (*CycleTrace, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	return &CycleTrace{file: f, enc: json.NewEncoder(f)}, nil
}

// Write encodes v as a single line. Encoding errors are dropped; the trace
// is diagnostic output.
func (t *CycleTrace) Write(v any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	_ = t.enc.Encode(v)
}

// Close closes the underlying file.
func (t *CycleTrace) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
