package server

import (
	"net/http"

	"runboard/internal/dashboard/handler"
	"runboard/internal/dashboard/middleware"
)

func NewMux(
	runsHandler *handler.RunsHandler,
	configHandler *handler.ConfigHandler,
	live http.Handler,
	allowedOrigins []string,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", runsHandler.HandleRoot)

	// Run API
	mux.HandleFunc("GET /api/runs", runsHandler.HandleList)
	mux.HandleFunc("GET /api/runs/{run_id}", runsHandler.HandleDetail)
	mux.HandleFunc("GET /api/files/{run_id}/{file_path...}", runsHandler.HandleFile)

	// Scan configuration
	mux.HandleFunc("GET /api/config", configHandler.HandleGet)
	mux.HandleFunc("POST /api/config/paths", configHandler.HandleAddPath)

	// Live updates
	mux.Handle("GET /ws", live)

	return middleware.CORS(allowedOrigins, mux)
}
