package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/faceval/internal/adapters/report"
)

// ReportHandler serves the latest evaluation report.
type ReportHandler struct {
	deps ReportProvider
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportProvider) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleGetReport handles GET /report. With ?format=text the report is
// rendered as markdown tables.
func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rep, ok := h.deps.Report()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_report", ErrNoReport)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "text", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = report.WriteText(w, rep)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: unknown format", ErrBadRequest))
	}
}

// HandleGetModel handles GET /report/{model}.
func (h *ReportHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/report/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	rep, ok := h.deps.Report()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_report", ErrNoReport)
		return
	}
	m, ok := rep.Model(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", ErrModelNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
