package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober reports whether the reasoning backend is reachable.
type Prober interface {
	Name() string
	Health(ctx context.Context) bool
}

// Counter reports the number of live voice sessions.
type Counter interface {
	Count() int
}

// HealthInfo carries static configuration reported by /health.
type HealthInfo struct {
	HardwareMode string
	TTSEnabled   bool
	School       func() string
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     Pinger
	llm      Prober
	sessions Counter
	info     HealthInfo
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler. llm and sessions are optional.
func NewHealthHandler(repo Pinger, llm Prober, sessions Counter, info HealthInfo) *HealthHandler {
	return &HealthHandler{repo: repo, llm: llm, sessions: sessions, info: info, timeout: 5 * time.Second}
}

// Health returns the health status of the API and its dependencies. Only an
// unreachable database makes the service unhealthy; a missing reasoning
// backend is reported as degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":        "healthy",
		"checks":        checks,
		"hardware_mode": h.info.HardwareMode,
		"tts_enabled":   h.info.TTSEnabled,
	}
	if h.info.School != nil {
		status["school"] = h.info.School()
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "unhealthy"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.llm != nil {
		status["llm_provider"] = h.llm.Name()
		if h.llm.Health(ctx) {
			checks["llm"] = "ok"
		} else {
			checks["llm"] = "unreachable"
			if statusCode == http.StatusOK {
				status["status"] = "degraded"
			}
		}
	}

	if h.sessions != nil {
		status["active_sessions"] = h.sessions.Count()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
