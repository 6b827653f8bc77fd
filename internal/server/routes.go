package server

import (
	"log/slog"
	"net/http"

	"github.com/mediavault/mediavault-api/internal/metrics"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Client-facing file operations
	mux.HandleFunc("POST /api/vid/file/upload", h.Upload)
	mux.HandleFunc("GET /api/vid/file/{id}/download", h.Download)
	mux.HandleFunc("GET /api/vid/file/{id}/metadata", h.Metadata)
	mux.HandleFunc("GET /api/vid/file/{id}/metadata/versions", h.Versions)
	mux.HandleFunc("GET /api/vid/file/{id}/transcode", h.Transcode)
	mux.HandleFunc("GET /api/vid/file/{id}/article-recommendations", h.Recommendations)

	// Management operations
	mux.HandleFunc("POST /api/manage/metadata/store", h.StoreMetadata)
	mux.HandleFunc("POST /api/manage/metadata/rollback", h.Rollback)
	mux.HandleFunc("POST /api/manage/file/backup", h.Backup)
	mux.HandleFunc("POST /api/manage/file/restore", h.Restore)

	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
