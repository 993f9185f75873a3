package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextLogger(t *testing.T) {
	r := require.New(t)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)
	logger.Info("task failed", "fd", 7)
	logger.Debug("hidden")

	r.Contains(buf.String(), "task failed")
	r.Contains(buf.String(), "fd=7")
	r.NotContains(buf.String(), "hidden")
}

func TestJSONLogger(t *testing.T) {
	r := require.New(t)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelDebug, "JSON", &buf)
	logger.Debug("readiness", "budget", "1s")

	var entry map[string]any
	r.NoError(json.Unmarshal(buf.Bytes(), &entry))
	r.Equal("readiness", entry["msg"])
	r.Equal("1s", entry["budget"])
	r.Equal("DEBUG", entry["level"])
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	} {
		require.Equal(t, want, ParseLevel(input), "input %q", input)
	}
}
