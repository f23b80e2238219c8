package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFanout(t *testing.T) {
	var terminal, file bytes.Buffer
	logger := newFanout(&terminal, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("round complete", "error", "none")

	assert.NotContains(t, terminal.String(), "hidden")
	assert.Contains(t, terminal.String(), "err=none")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &rec))
	assert.Equal(t, "round complete", rec["msg"])
	assert.Equal(t, "none", rec["err"])
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.log")
	logger, closer, err := NewWithFile(slog.LevelWarn, path)
	require.NoError(t, err)

	logger.Warn("space op failed", "op", "tell")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"op":"tell"`))

	_, _, err = NewWithFile(slog.LevelInfo, filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}
