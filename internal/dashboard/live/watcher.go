package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"runboard/internal/runs"
)

// Discoverer is the part of the run engine the watcher needs.
type Discoverer interface {
	DiscoverAll(ctx context.Context) ([]runs.Summary, error)
}

// Broadcaster delivers a message to every live listener.
type Broadcaster interface {
	Broadcast(msg string) int
}

// Watcher rescans runs on an interval and announces changes to the run set
// (new or vanished runs, status flips, new epochs or steps).
type Watcher struct {
	discover Discoverer
	out      Broadcaster
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	last string
}

type runsChanged struct {
	Type    string   `json:"type"`
	Runs    int      `json:"runs"`
	Running []string `json:"running"`
}

func NewWatcher(d Discoverer, out Broadcaster, interval, timeout time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{discover: d, out: out, interval: interval, timeout: timeout, logger: logger}
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (w *Watcher) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	// The first pass only records the baseline.
	_, _ = w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("run watcher scan failed", "error", err)
			}
		}
	}
}

// Check performs one scan and broadcasts when the run set differs from the
// previous scan. It reports whether a broadcast happened.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	scanCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	all, err := w.discover.DiscoverAll(scanCtx)
	if err != nil {
		return false, err
	}

	fp := fingerprint(all)
	first := w.last == ""
	changed := fp != w.last
	w.last = fp
	if first || !changed {
		return false, nil
	}

	msg := runsChanged{Type: "runs_changed", Runs: len(all), Running: []string{}}
	for _, s := range all {
		if s.Status == runs.StatusRunning {
			msg.Running = append(msg.Running, s.ID)
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}
	n := w.out.Broadcast(UpdatePrefix + string(b))
	w.logger.Debug("runs changed", "runs", len(all), "listeners", n)
	return true, nil
}

func fingerprint(all []runs.Summary) string {
	keys := make([]string, 0, len(all))
	for _, s := range all {
		keys = append(keys, fmt.Sprintf("%s|%s|%s|%s|%d|%d", s.Project, s.ID, s.Path, s.Status, s.Epochs, s.MetricsCount))
	}
	slices.Sort(keys)
	return fmt.Sprintf("%d:", len(keys)) + strings.Join(keys, ";")
}
