// Package runlog writes training run artifacts in the layout the dashboard
// discovers: config.json, metrics.json and image folders under one run directory.
package runlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	metricsFile = "metrics.json"
	configFile  = "config.json"
	plotsDir    = "plots"
	samplesDir  = "samples"
)

// Metrics is one set of named scalar values for a step or epoch.
type Metrics map[string]float64

type metricsDoc struct {
	TrainingMetrics   []map[string]any `json:"training_metrics"`
	ValidationMetrics []map[string]any `json:"validation_metrics"`
	Metadata          map[string]any   `json:"metadata"`
}

// Logger appends training and validation entries for one run and rewrites
// metrics.json in full whenever an epoch or metadata is logged.
type Logger struct {
	outputDir   string
	runID       string
	metricsPath string
	plotsDir    string
	logger      *slog.Logger
	now         func() time.Time

	mu  sync.Mutex
	doc metricsDoc
}

type Option func(*Logger)

func WithLogger(l *slog.Logger) Option {
	return func(lg *Logger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(lg *Logger) {
		if now != nil {
			lg.now = now
		}
	}
}

// New prepares outputDir (and its plots folder) for run runID.
func New(outputDir, runID string, opts ...Option) (*Logger, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("runlog: run id is required")
	}
	l := &Logger{
		outputDir:   outputDir,
		runID:       runID,
		metricsPath: filepath.Join(outputDir, metricsFile),
		plotsDir:    filepath.Join(outputDir, plotsDir),
		logger:      slog.Default(),
		now:         time.Now,
		doc: metricsDoc{
			TrainingMetrics:   []map[string]any{},
			ValidationMetrics: []map[string]any{},
			Metadata:          map[string]any{"run_id": runID},
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := os.MkdirAll(l.plotsDir, 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create plots dir: %w", err)
	}
	l.logger.Info("LOGGER_INIT", "run_id", runID, "output", outputDir)
	return l, nil
}

func (l *Logger) RunID() string       { return l.runID }
func (l *Logger) MetricsPath() string { return l.metricsPath }

// LogMetadata merges kv into the metadata block and saves.
func (l *Logger) LogMetadata(kv map[string]any) error {
	l.mu.Lock()
	maps.Copy(l.doc.Metadata, kv)
	err := l.saveLocked()
	l.mu.Unlock()
	l.logger.Info("METADATA", "keys", sortedKeys(kv))
	return err
}

// LogTrainingStep records a step in memory; it is persisted with the next
// epoch or metadata save.
func (l *Logger) LogTrainingStep(epoch, step int, m Metrics) {
	entry := l.entry(m)
	entry["epoch"] = epoch
	entry["step"] = step

	l.mu.Lock()
	l.doc.TrainingMetrics = append(l.doc.TrainingMetrics, entry)
	l.mu.Unlock()

	if step%10 == 0 {
		l.logger.Info("TRAIN_STEP", "epoch", epoch, "step", step, "metrics", formatMetrics(m))
	}
}

// LogEpoch records a validation entry and saves metrics.json.
func (l *Logger) LogEpoch(epoch int, m Metrics) error {
	entry := l.entry(m)
	entry["epoch"] = epoch

	l.mu.Lock()
	l.doc.ValidationMetrics = append(l.doc.ValidationMetrics, entry)
	err := l.saveLocked()
	l.mu.Unlock()

	l.logger.Info("EPOCH_END", "epoch", epoch, "metrics", formatMetrics(m))
	return err
}

// Flush writes the current document, including unsaved training steps.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// PlotPath is where a plot named name (without extension) belongs.
func (l *Logger) PlotPath(name string) string {
	return filepath.Join(l.plotsDir, name+".png")
}

// EpochPlotPath is where the per-epoch snapshot of a plot belongs. The
// dashboard shows only the newest snapshot per plot name.
func (l *Logger) EpochPlotPath(name string, epoch int) string {
	return l.PlotPath(fmt.Sprintf("%s_epoch_%d", name, epoch))
}

func (l *Logger) LogCheckpoint(path string, epoch int) {
	l.logger.Info("CHECKPOINT", "epoch", epoch, "saved", path)
}

func (l *Logger) LogError(msg string) {
	l.logger.Error("ERROR", "message", msg)
}

func (l *Logger) LogCompletion() {
	l.logger.Info("TRAINING_COMPLETE", "run_id", l.runID)
	l.logger.Info("FINAL_METRICS", "path", l.metricsPath)
	l.logger.Info("FINAL_PLOTS", "path", l.plotsDir)
}

// entry stores non-finite values as null; JSON has no NaN or Inf.
func (l *Logger) entry(m Metrics) map[string]any {
	entry := make(map[string]any, len(m)+3)
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			entry[k] = nil
			continue
		}
		entry[k] = v
	}
	entry["timestamp"] = float64(l.now().UnixNano()) / float64(time.Second)
	return entry
}

func (l *Logger) saveLocked() error {
	b, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("runlog: encode metrics: %w", err)
	}
	return writeFileAtomic(l.metricsPath, b)
}

// writeFileAtomic replaces path so readers never observe a half-written file.
func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("runlog: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("runlog: write %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("runlog: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("runlog: replace %s: %w", path, err)
	}
	return nil
}

func formatMetrics(m Metrics) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %.4f", k, m[k]))
	}
	return strings.Join(parts, " | ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
