package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"json-force-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	store   *config.Store
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store *config.Store, v Version) *HealthHandler {
	return &HealthHandler{store: store, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information, including the currently
// configured target, which may change across reloads.
func (h *HealthHandler) Status(c echo.Context) error {
	cfg := h.store.Current()

	status := "ok"
	if cfg.Upstream.TargetURL == "" {
		status = "unconfigured"
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":     status,
		"version":    string(h.version),
		"target_url": cfg.Upstream.TargetURL,
	})
}
