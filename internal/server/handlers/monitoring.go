package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/botpack/internal/catalog"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/server/responses"
	"git.home.luguber.info/inful/botpack/internal/version"
)

// MonitoringHandlers serves liveness and readiness checks.
type MonitoringHandlers struct {
	service      ServiceFunc
	startTime    time.Time
	errorAdapter *derrors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates monitoring handlers.
func NewMonitoringHandlers(service ServiceFunc, startTime time.Time, logger *slog.Logger) *MonitoringHandlers {
	return &MonitoringHandlers{
		service:      service,
		startTime:    startTime,
		errorAdapter: derrors.NewHTTPErrorAdapter(logger),
	}
}

// HandleHealthCheck reports healthy when the module catalog can be read.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service().Modules(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(h.startTime).Seconds(),
		Modules:   catalog.IDs(modules),
	}
	if err := writeJSONPretty(w, r, http.StatusOK, health); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			derrors.WrapError(err, derrors.CategoryInternal, "failed to write health response").Build())
	}
}

// HandleReadiness reports ready when the base template can be opened.
func (h *MonitoringHandlers) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := h.service().Ready(r.Context()); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	ready := &responses.ReadyResponse{Status: "ready", Timestamp: time.Now().UTC()}
	if err := writeJSONPretty(w, r, http.StatusOK, ready); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			derrors.WrapError(err, derrors.CategoryInternal, "failed to write readiness response").Build())
	}
}
