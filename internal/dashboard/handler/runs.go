package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"runboard/internal/runs"
	"runboard/internal/safeio"
)

const (
	msgRunNotFound  = "Run not found"
	msgFileNotFound = "File not found"
)

// RunsHandler serves run listings, run details and run files.
type RunsHandler struct {
	engine      *runs.Engine
	scanTimeout time.Duration
	logger      *slog.Logger
}

func NewRunsHandler(engine *runs.Engine, scanTimeout time.Duration, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{engine: engine, scanTimeout: scanTimeout, logger: logger}
}

func (h *RunsHandler) scanContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.scanTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.scanTimeout)
}

func (h *RunsHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ML Training Dashboard API"})
}

// HandleList serves GET /api/runs.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.scanContext(r)
	defer cancel()

	all, err := h.engine.DiscoverAll(ctx)
	if err != nil {
		h.scanFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": all})
}

// HandleDetail serves GET /api/runs/{run_id}.
func (h *RunsHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.scanContext(r)
	defer cancel()

	filter := runs.Filter{Project: strings.TrimSpace(r.URL.Query().Get("project"))}
	detail, err := h.engine.Detail(ctx, r.PathValue("run_id"), filter)
	if errors.Is(err, runs.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, msgRunNotFound)
		return
	}
	if err != nil {
		h.scanFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleFile serves GET /api/files/{run_id}/{file_path...}. Paths are
// confined to the run's own directory.
func (h *RunsHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.scanContext(r)
	defer cancel()

	run, err := h.engine.Find(ctx, r.PathValue("run_id"), runs.Filter{})
	if errors.Is(err, runs.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, msgRunNotFound)
		return
	}
	if err != nil {
		h.scanFailed(w, err)
		return
	}

	fsys, err := safeio.NewSafeFS(run.Path)
	if err != nil {
		h.logger.Warn("run directory unavailable", "run", run.ID, "path", run.Path, "error", err)
		writeError(w, http.StatusNotFound, msgFileNotFound)
		return
	}
	rel := r.PathValue("file_path")
	f, info, err := fsys.OpenFile(rel)
	if err != nil {
		if errors.Is(err, safeio.ErrOutsideRoot) {
			h.logger.Warn("rejected file path outside run", "run", run.ID, "file", rel)
		} else if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, safeio.ErrNotFile) {
			h.logger.Warn("cannot open run file", "run", run.ID, "file", rel, "error", err)
		}
		writeError(w, http.StatusNotFound, msgFileNotFound)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *RunsHandler) scanFailed(w http.ResponseWriter, err error) {
	h.logger.Error("run scan failed", "error", err)
	writeError(w, http.StatusServiceUnavailable, "run scan did not complete: "+err.Error())
}
