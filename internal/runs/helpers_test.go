package runs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func writeJSON(t *testing.T, root, rel string, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return write(t, root, rel, string(b))
}

func metricsDoc(training, validation int, lastTimestamp float64) map[string]any {
	tm := make([]map[string]any, 0, training)
	for i := 0; i < training; i++ {
		tm = append(tm, map[string]any{"epoch": 1, "step": i, "timestamp": lastTimestamp, "loss": 0.5})
	}
	vm := make([]map[string]any, 0, validation)
	for i := 0; i < validation; i++ {
		vm = append(vm, map[string]any{"epoch": i + 1, "timestamp": lastTimestamp, "val_loss": 0.4})
	}
	return map[string]any{
		"training_metrics":   tm,
		"validation_metrics": vm,
		"metadata":           map[string]any{"run_id": "x"},
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// newTestEngine points an engine at root/*/runs so every project under root is scanned.
func newTestEngine(t *testing.T, root string, opts Options) *Engine {
	t.Helper()
	return NewEngine(NewPathList([]string{filepath.Join(root, "*", "runs")}), opts)
}
