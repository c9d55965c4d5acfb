package api

import (
	"net/http"

	"github.com/okian/faceval/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	deps ReportProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps ReportProvider) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status      string `json:"status"`
	ReportReady bool   `json:"report_ready"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	_, ready := h.deps.Report()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ReportReady: ready})
}

// HandleMetrics handles GET /metrics requests from the custom registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
