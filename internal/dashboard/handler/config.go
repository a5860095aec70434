package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"runboard/internal/runs"
)

// ConfigHandler exposes and extends the scan pattern list.
type ConfigHandler struct {
	paths  *runs.PathList
	logger *slog.Logger
}

func NewConfigHandler(paths *runs.PathList, logger *slog.Logger) *ConfigHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigHandler{paths: paths, logger: logger}
}

// HandleGet serves GET /api/config. scan_results lists the directories the
// patterns expand to right now, not the patterns themselves; a glob such as
// ../*/runs shows up as each matching runs directory.
func (h *ConfigHandler) HandleGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"training_paths": h.paths.Snapshot(),
		"scan_results":   h.paths.ScanResults(),
	})
}

// HandleAddPath serves POST /api/config/paths with body {"path": "..."}.
func (h *ConfigHandler) HandleAddPath(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	path := strings.TrimSpace(in.Path)
	if err := h.paths.Add(path); err != nil {
		if errors.Is(err, runs.ErrInvalidPath) || errors.Is(err, runs.ErrDuplicatePath) {
			h.logger.Info("training path rejected", "path", path, "error", err)
			writeError(w, http.StatusBadRequest, "Invalid or duplicate path")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("training path added", "path", path)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Added path: " + path})
}
