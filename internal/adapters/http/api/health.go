package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/eventmatch/pkg/metrics"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

type healthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// HandleHealth handles GET /healthz requests. The process is healthy once it
// serves requests; ready reports whether a vector space has been built.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	ready, _ := h.stats.GetStats()["ready"].(bool)
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Ready: ready})
}

// MetricsHandler serves the custom Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
