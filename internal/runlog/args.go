package runlog

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/pflag"
)

// Args are the command line inputs every training script accepts.
type Args struct {
	ConfigPath string
	RunID      string
	OutputDir  string
}

// ParseArgs reads --config, --run-id and --output-dir; all three are required.
func ParseArgs(name string, args []string) (Args, error) {
	var a Args
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&a.ConfigPath, "config", "", "path to the JSON training config")
	fs.StringVar(&a.RunID, "run-id", "", "unique run identifier")
	fs.StringVar(&a.OutputDir, "output-dir", "", "run output directory")
	if err := fs.Parse(args); err != nil {
		return Args{}, err
	}
	for _, req := range []struct{ flag, v string }{
		{"config", a.ConfigPath},
		{"run-id", a.RunID},
		{"output-dir", a.OutputDir},
	} {
		if req.v == "" {
			return Args{}, fmt.Errorf("runlog: --%s is required", req.flag)
		}
	}
	return a, nil
}

// Run bundles what a training script needs after Initialize.
type Run struct {
	Args   Args
	Config map[string]any
	Dirs   Dirs
	Logger *Logger
}

// Initialize loads and validates the config, lays out the output directory,
// copies the config next to the metrics, and records system metadata.
func Initialize(a Args, logger *slog.Logger) (*Run, error) {
	cfg, err := LoadConfig(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := ValidateSetup(cfg); err != nil {
		return nil, err
	}
	outputDir := filepath.Clean(a.OutputDir)
	dirs, err := SetupDirectories(outputDir)
	if err != nil {
		return nil, err
	}
	if err := SaveConfigCopy(cfg, outputDir); err != nil {
		return nil, err
	}
	l, err := New(outputDir, a.RunID, WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := l.LogMetadata(map[string]any{"system": SystemInfo(), "config_path": a.ConfigPath}); err != nil {
		return nil, err
	}
	return &Run{Args: a, Config: cfg, Dirs: dirs, Logger: l}, nil
}
