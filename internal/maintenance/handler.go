package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"

	"desa-portal/internal/observability"
	"desa-portal/internal/ratelimit"
)

// SweepHandler forces an immediate sweep of the rate limiters outside their
// background schedule, e.g. from a platform cron. Disabled unless a cron
// secret is configured.
type SweepHandler struct {
	limiters   map[string]*ratelimit.Limiter
	logger     *observability.Logger
	cronSecret string
}

func NewSweepHandler(limiters map[string]*ratelimit.Limiter, logger *observability.Logger, cronSecret string) *SweepHandler {
	return &SweepHandler{
		limiters:   limiters,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	removed := make(map[string]int, len(h.limiters))
	for name, limiter := range h.limiters {
		removed[name] = limiter.Sweep()
	}

	h.logger.Info("rate_limit_sweep_completed", map[string]any{"removed": removed})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"removed": removed,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
