package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"trace", LevelTrace},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLoggerFiltersAndLabels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", FormatText, &buf)
	logger.Debug("hidden")
	logger.Info("shown", "cycle", 3)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "cycle=3")

	buf.Reset()
	logger = NewLogger("trace", FormatText, &buf)
	logger.Log(context.Background(), LevelTrace, "deep")
	require.Contains(t, buf.String(), "level=TRACE")
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("info", FormatJSON, &buf).Info("run started", "seed", 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "run started", rec["msg"])
	require.Equal(t, float64(42), rec["seed"])
}

func TestCycleTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "run.jsonl")
	tr, err := OpenCycleTrace(path)
	require.NoError(t, err)

	tr.Write(map[string]int{"cycle": 1})
	tr.Write(map[string]int{"cycle": 2})
	require.NoError(t, tr.Close())
	tr.Write(map[string]int{"cycle": 3})
	require.NoError(t, tr.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	require.Equal(t, 2, lines)

	var nilTrace *CycleTrace
	nilTrace.Write("ignored")
	require.NoError(t, nilTrace.Close())
}
