package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"runboard/internal/dashboard/config"
	"runboard/internal/dashboard/handler"
	"runboard/internal/dashboard/live"
	"runboard/internal/dashboard/server"
	"runboard/internal/logging"
	"runboard/internal/runs"
)

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	logs    io.Closer
	engine  *runs.Engine
	hub     *live.Hub
	watcher *live.Watcher
	server  *server.Server

	watchCtx  context.Context
	stopWatch context.CancelFunc
}

func New(args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, logs, err := logging.New(logging.Options{Path: cfg.Log.Path, Level: cfg.Log.Level})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.SetDefault(logger)
	return NewWithConfig(cfg, logger, logs), nil
}

// NewWithConfig wires the dashboard from an already resolved config.
func NewWithConfig(cfg *config.Config, logger *slog.Logger, logs io.Closer) *App {
	if logger == nil {
		logger = slog.Default()
	}
	paths := runs.NewPathList(cfg.TrainingPaths)
	engine := runs.NewEngine(paths, runs.Options{
		Logger:     logger,
		Reader:     runs.NewReader(logger, cfg.ArtifactCacheSize),
		Status:     runs.StatusInferrer{Window: cfg.StatusWindow},
		PlotPolicy: cfg.PlotPolicy,
	})
	hub := live.NewHub(logger, cfg.AllowedOrigins)

	runsHandler := handler.NewRunsHandler(engine, cfg.ScanTimeout, logger)
	configHandler := handler.NewConfigHandler(paths, logger)

	mux := server.NewMux(runsHandler, configHandler, hub, cfg.AllowedOrigins)

	watchCtx, stopWatch := context.WithCancel(context.Background())
	return &App{
		cfg:       cfg,
		logger:    logger,
		logs:      logs,
		engine:    engine,
		hub:       hub,
		watcher:   live.NewWatcher(engine, hub, cfg.WatchInterval, cfg.ScanTimeout, logger),
		server:    server.New(cfg.Port, mux, logger),
		watchCtx:  watchCtx,
		stopWatch: stopWatch,
	}
}

// reportPaths logs which patterns currently resolve to runs directories.
func (a *App) reportPaths() {
	a.logger.Info("scanning for training runs", "patterns", len(a.cfg.TrainingPaths))
	for _, pattern := range a.engine.Paths().Snapshot() {
		dirs, err := runs.Expand(pattern)
		if err != nil {
			a.logger.Warn("invalid training path", "pattern", pattern, "error", err)
			continue
		}
		if len(dirs) == 0 {
			a.logger.Info("training path not found", "pattern", pattern)
			continue
		}
		for _, d := range dirs {
			a.logger.Info("training path found", "pattern", pattern, "dir", d)
		}
	}
}

// Start reports the scan paths, starts the run watcher and serves until
// Shutdown.
func (a *App) Start() error {
	a.reportPaths()
	go a.watcher.Run(a.watchCtx)
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.stopWatch()
	a.hub.Close()
	err := a.server.Shutdown(ctx)
	if a.logs != nil {
		err = errors.Join(err, a.logs.Close())
	}
	return err
}
