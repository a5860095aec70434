package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := New(Options{Path: dir, Level: "info"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	logger.Info("scan finished", "runs", 3)

	b, err := os.ReadFile(filepath.Join(dir, "runboard.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "scan finished")
	assert.Contains(t, string(b), "runs=3")
}
