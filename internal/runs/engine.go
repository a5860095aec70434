package runs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"
)

const defaultScanWorkers = 4

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	Logger      *slog.Logger
	Reader      *Reader
	Status      StatusInferrer
	PlotPolicy  PlotPolicy
	ScanWorkers int
}

// Engine discovers runs under the patterns of a PathList. It keeps no state
// about runs between calls; every call rescans the filesystem.
type Engine struct {
	paths   *PathList
	logger  *slog.Logger
	reader  *Reader
	status  StatusInferrer
	plots   PlotPolicy
	workers int
}

func NewEngine(paths *PathList, opts Options) *Engine {
	e := &Engine{
		paths:   paths,
		logger:  opts.Logger,
		reader:  opts.Reader,
		status:  opts.Status,
		plots:   opts.PlotPolicy,
		workers: opts.ScanWorkers,
	}
	if e.paths == nil {
		e.paths = NewPathList(nil)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.reader == nil {
		e.reader = NewReader(e.logger, 0)
	}
	if e.plots == "" {
		e.plots = PlotsLatestEpoch
	}
	if e.workers <= 0 {
		e.workers = defaultScanWorkers
	}
	return e
}

func (e *Engine) Paths() *PathList { return e.paths }

// Classify builds a Summary for runDir, or reports false when runDir is not
// a run. Broken artifacts never fail classification.
func (e *Engine) Classify(runDir string) (Summary, bool) {
	info, err := os.Stat(runDir)
	if err != nil || !info.IsDir() {
		return Summary{}, false
	}
	configPath := filepath.Join(runDir, ConfigFile)
	metricsPath := filepath.Join(runDir, MetricsFile)
	hasConfig := exists(configPath)
	hasMetrics := exists(metricsPath)
	if !hasConfig && !hasMetrics {
		return Summary{}, false
	}

	s := Summary{
		ID:        filepath.Base(runDir),
		Path:      runDir,
		Project:   projectOf(runDir),
		Status:    StatusCompleted,
		CreatedAt: changeTime(runDir, info).UTC(),
		Config:    Document{},
	}
	if hasConfig {
		s.Config, _ = e.reader.ReadJSON(configPath)
	}
	if hasMetrics {
		if metrics, ok := e.reader.ReadJSON(metricsPath); ok {
			s.MetricsCount = len(metrics.sequence(keyTrainingMetrics))
			s.Epochs = len(metrics.sequence(keyValidationMetrics))
			s.Status = e.status.Infer(metrics)
		}
	}
	return s, true
}

// projectOf names the project a run belongs to: the directory holding the
// runs directory, or "local" when that is the working directory.
func projectOf(runDir string) string {
	name := filepath.Base(filepath.Dir(filepath.Dir(runDir)))
	switch name {
	case ".", "", string(filepath.Separator):
		return localProject
	}
	return name
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DiscoverAll scans every pattern and returns all runs, newest first.
func (e *Engine) DiscoverAll(ctx context.Context) ([]Summary, error) {
	patterns := e.paths.Snapshot()
	found := make([][]string, len(patterns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, pattern := range patterns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dirs, err := Expand(pattern)
			if err != nil {
				e.logger.Warn("skipping training path", "pattern", pattern, "error", err)
				return nil
			}
			found[i] = dirs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("expand training paths: %w", err)
	}

	seen := map[string]bool{}
	var runsDirs []string
	for _, dirs := range found {
		for _, d := range dirs {
			key := absKey(d)
			if seen[key] {
				continue
			}
			seen[key] = true
			runsDirs = append(runsDirs, d)
		}
	}

	perDir := make([][]Summary, len(runsDirs))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, dir := range runsDirs {
		g.Go(func() error {
			out, err := e.scanRunsDir(gctx, dir)
			perDir[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan training paths: %w", err)
	}

	all := []Summary{}
	for _, out := range perDir {
		all = append(all, out...)
	}
	slices.SortStableFunc(all, func(a, b Summary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return all, nil
}

func (e *Engine) scanRunsDir(ctx context.Context, dir string) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Warn("cannot list runs directory", "dir", dir, "error", err)
		return nil, nil
	}
	e.logger.Debug("scanning for runs", "dir", dir)
	var out []Summary
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s, ok := e.Classify(filepath.Join(dir, entry.Name())); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Find returns the first run matching id and filter from a fresh scan.
func (e *Engine) Find(ctx context.Context, id string, filter Filter) (Summary, error) {
	all, err := e.DiscoverAll(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, s := range all {
		if filter.matches(s, id) {
			return s, nil
		}
	}
	return Summary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// Detail resolves id and loads its full documents and asset listings.
func (e *Engine) Detail(ctx context.Context, id string, filter Filter) (Detail, error) {
	s, err := e.Find(ctx, id, filter)
	if err != nil {
		return Detail{}, err
	}
	metrics, _ := e.reader.ReadJSON(filepath.Join(s.Path, MetricsFile))
	config, _ := e.reader.ReadJSON(filepath.Join(s.Path, ConfigFile))
	return Detail{
		ID:      s.ID,
		Path:    s.Path,
		Project: s.Project,
		Status:  s.Status,
		Config:  config,
		Metrics: metrics,
		Plots:   ListPlots(s.Path, e.plots),
		Samples: ListSamples(s.Path),
	}, nil
}
