package webui

import (
	"context"
	"net/http"
	"time"

	"aichat_backend/metrics"

	"go.uber.org/zap"
)

type healthResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Message: "API is running", Version: s.config.Version})
}

// StatusResponse is served at /api/status. It carries aggregates only; run
// owners are never exposed.
type StatusResponse struct {
	Health     string            `json:"health"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	UptimeSecs float64           `json:"uptime_secs"`
	Database   string            `json:"database"`
	Runs       *metrics.RunStats `json:"runs,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Health:   "healthy",
		Version:  s.config.Version,
		Database: "unknown",
	}

	uptime := time.Since(s.startedAt)
	if store := s.deps.Metrics.Store(); store != nil {
		uptime = store.Uptime()
		stats := store.Stats()
		resp.Runs = &stats
	}
	resp.Uptime = uptime.Round(time.Second).String()
	resp.UptimeSecs = uptime.Seconds()

	status := http.StatusOK
	if s.deps.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Database.Ping(ctx); err != nil {
			s.logger.Warn("database ping failed", zap.Error(err))
			resp.Health = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}
