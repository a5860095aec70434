package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var (
	ErrMissingKey  = errors.New("runlog: required config key missing")
	ErrMissingData = errors.New("runlog: data directory does not exist")
)

// RequiredKeys must be present in every training config.
var RequiredKeys = []string{"model", "training", "data_dir"}

// Dirs are the folders a run writes into.
type Dirs struct {
	Checkpoints string
	Plots       string
	Samples     string
	Logs        string
	Model       string
}

// SetupDirectories creates the standard run layout under outputDir.
func SetupDirectories(outputDir string) (Dirs, error) {
	d := Dirs{
		Checkpoints: filepath.Join(outputDir, "checkpoints"),
		Plots:       filepath.Join(outputDir, plotsDir),
		Samples:     filepath.Join(outputDir, samplesDir),
		Logs:        filepath.Join(outputDir, "logs"),
		Model:       filepath.Join(outputDir, "model"),
	}
	for _, p := range []string{d.Checkpoints, d.Plots, d.Samples, d.Logs, d.Model} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return Dirs{}, fmt.Errorf("runlog: create %s: %w", p, err)
		}
	}
	return d, nil
}

// LoadConfig reads a JSON training config.
func LoadConfig(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: read config: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("runlog: parse config %s: %w", path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("runlog: config %s is not an object", path)
	}
	return cfg, nil
}

// SaveConfigCopy writes cfg as config.json in outputDir so the dashboard can
// show it next to the run's metrics.
func SaveConfigCopy(cfg map[string]any, outputDir string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("runlog: encode config: %w", err)
	}
	return writeFileAtomic(filepath.Join(outputDir, configFile), b)
}

// ValidateSetup checks the required config keys and that data_dir exists.
func ValidateSetup(cfg map[string]any) error {
	for _, k := range RequiredKeys {
		if _, ok := cfg[k]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingKey, k)
		}
	}
	dataDir, _ := cfg["data_dir"].(string)
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrMissingData, dataDir)
	}
	return nil
}

// SystemInfo describes the host a run executes on. It is stored in the
// metrics metadata block.
func SystemInfo() map[string]any {
	host, _ := os.Hostname()
	return map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpu_count":  runtime.NumCPU(),
		"hostname":   host,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
}
