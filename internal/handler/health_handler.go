package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go-auth-service/internal/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      pinger
	cache   pinger
	started time.Time
	version string
}

func NewHealthHandler(db pinger, cache pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, started: time.Now(), version: version}
}

type healthReport struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Redis     string    `json:"redis"`
	Uptime    float64   `json:"uptime"`
	Version   string    `json:"version"`
}

// Check answers 503 when the database is unreachable. A redis outage only
// degrades the service since the session cache is best-effort.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	report := healthReport{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "connected",
		Redis:     "connected",
		Uptime:    time.Since(h.started).Seconds(),
		Version:   h.version,
	}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "health check failed", "component", "database", "error", err.Error())
		report.Status = "unhealthy"
		report.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			logger.FromContext(ctx).WarnContext(ctx, "health check degraded", "component", "redis", "error", err.Error())
			report.Redis = "disconnected"
			if status == http.StatusOK {
				report.Status = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
