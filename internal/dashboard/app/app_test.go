package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runboard/internal/dashboard/config"
	"runboard/internal/runs"
)

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestNewWithConfigWiresPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nlp", "runs", "r1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nlp", "runs", "r1", "config.json"), []byte(`{}`), 0o644))

	cfg := &config.Config{
		Port:          "127.0.0.1:0",
		TrainingPaths: []string{filepath.Join(root, "*", "runs"), filepath.Join(root, "missing", "runs")},
		PlotPolicy:    runs.PlotsLatestEpoch,
		ScanTimeout:   time.Second,
	}
	logs := &closeRecorder{}
	a := NewWithConfig(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), logs)

	assert.Equal(t, cfg.TrainingPaths, a.engine.Paths().Snapshot())
	a.reportPaths()

	all, err := a.engine.DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "nlp", all[0].Project)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	assert.True(t, logs.closed)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartReportsPathsAndStopsOnShutdown(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vision", "runs"), 0o755))

	out := &lockedBuffer{}
	cfg := &config.Config{
		Port:          "127.0.0.1:0",
		TrainingPaths: []string{filepath.Join(root, "*", "runs"), filepath.Join(root, "gone", "runs")},
		ScanTimeout:   time.Second,
		WatchInterval: 10 * time.Millisecond,
	}
	a := NewWithConfig(cfg, slog.New(slog.NewTextHandler(out, nil)), nil)

	served := make(chan error, 1)
	go func() { served <- a.Start() }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "training path not found")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "training path found")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
