package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"runboard/internal/runs"
)

type Config struct {
	Port              string
	TrainingPaths     []string
	AllowedOrigins    []string
	PlotPolicy        runs.PlotPolicy
	StatusWindow      time.Duration
	ScanTimeout       time.Duration
	WatchInterval     time.Duration
	ArtifactCacheSize int
	Log               LogConfig
}

type LogConfig struct {
	Path  string
	Level string
}

// fileConfig is the YAML layout of the optional config file.
type fileConfig struct {
	Port              string        `yaml:"port"`
	TrainingPaths     []string      `yaml:"training_paths"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	PlotPolicy        string        `yaml:"plot_policy"`
	StatusWindow      time.Duration `yaml:"status_window"`
	ScanTimeout       time.Duration `yaml:"scan_timeout"`
	WatchInterval     time.Duration `yaml:"watch_interval"`
	ArtifactCacheSize *int          `yaml:"artifact_cache_size"`
	Log               struct {
		Path  string `yaml:"path"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaults() Config {
	return Config{
		Port:              ":8000",
		TrainingPaths:     append([]string(nil), runs.DefaultPatterns...),
		AllowedOrigins:    []string{"http://localhost:3000"},
		PlotPolicy:        runs.PlotsLatestEpoch,
		StatusWindow:      runs.DefaultStatusWindow,
		ScanTimeout:       30 * time.Second,
		ArtifactCacheSize: 512,
	}
}

// Load resolves configuration from defaults, an optional YAML file, the
// environment (including .env), and command-line flags, in that order.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("runboard", pflag.ContinueOnError)
	port := fs.String("port", "", "server listen address (default :8000)")
	file := fs.String("config", "", "path to a YAML config file")
	logFile := fs.String("log-file", "", "rotating log file or directory")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	plotPolicy := fs.String("plot-policy", "", "epoch plot policy: latest-epoch or drop-epoch")
	watch := fs.Duration("watch-interval", 0, "rescan interval for live run updates (0 disables)")
	paths := fs.StringSlice("training-path", nil, "glob pattern of a runs directory (repeatable)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaults()

	path := firstNonEmpty(*file, strings.TrimSpace(os.Getenv("RUNBOARD_CONFIG")))
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if fs.Changed("port") {
		cfg.Port = normalizePort(*port)
	}
	if fs.Changed("log-file") {
		cfg.Log.Path = *logFile
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("plot-policy") {
		p, err := runs.ParsePlotPolicy(*plotPolicy)
		if err != nil {
			return nil, err
		}
		cfg.PlotPolicy = p
	}
	if fs.Changed("watch-interval") {
		cfg.WatchInterval = *watch
	}
	if fs.Changed("training-path") {
		cfg.TrainingPaths = *paths
	}
	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.Port != "" {
		c.Port = normalizePort(fc.Port)
	}
	if len(fc.TrainingPaths) > 0 {
		c.TrainingPaths = fc.TrainingPaths
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.PlotPolicy != "" {
		p, err := runs.ParsePlotPolicy(fc.PlotPolicy)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		c.PlotPolicy = p
	}
	if fc.StatusWindow > 0 {
		c.StatusWindow = fc.StatusWindow
	}
	if fc.ScanTimeout > 0 {
		c.ScanTimeout = fc.ScanTimeout
	}
	if fc.WatchInterval > 0 {
		c.WatchInterval = fc.WatchInterval
	}
	if fc.ArtifactCacheSize != nil {
		c.ArtifactCacheSize = *fc.ArtifactCacheSize
	}
	c.Log.Path = firstNonEmpty(fc.Log.Path, c.Log.Path)
	c.Log.Level = firstNonEmpty(fc.Log.Level, c.Log.Level)
	return nil
}

func (c *Config) applyEnv() error {
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		c.Port = normalizePort(envPort)
	}
	if raw := strings.TrimSpace(os.Getenv("RUNBOARD_TRAINING_PATHS")); raw != "" {
		c.TrainingPaths = splitList(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("RUNBOARD_ALLOWED_ORIGINS")); raw != "" {
		c.AllowedOrigins = splitList(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("RUNBOARD_PLOT_POLICY")); raw != "" {
		p, err := runs.ParsePlotPolicy(raw)
		if err != nil {
			return err
		}
		c.PlotPolicy = p
	}
	c.Log.Path = firstNonEmpty(strings.TrimSpace(os.Getenv("RUNBOARD_LOG_FILE")), c.Log.Path)
	c.Log.Level = firstNonEmpty(strings.TrimSpace(os.Getenv("RUNBOARD_LOG_LEVEL")), c.Log.Level)
	if len(c.TrainingPaths) == 0 {
		return errors.New("no training paths configured")
	}
	return nil
}

func normalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
