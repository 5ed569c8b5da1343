package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"json-force-proxy/internal/model"
	"json-force-proxy/internal/service"
)

// ProxyHandler forwards inbound requests to the configured upstream.
type ProxyHandler struct {
	service *service.ForwardService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ForwardService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request to the upstream and writes the response back.
// The inbound body is read in full before the upstream call is issued,
// whatever the method. Failures never surface as connection drops; they map
// to the plain-text 500/502 responses in mapError.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body")
	}

	pr := &model.ProxyRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header,
		Body:   body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	// Copy filtered response headers
	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	if _, err := c.Response().Write(resp.Body); err != nil {
		// The status line is already on the wire; all that is left is to
		// record the truncated delivery.
		h.logger.Error("writing response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// mapError converts the two failure modes into their plain-text responses:
// a missing target URL is a proxy self-diagnostic (500); anything else is a
// failed upstream exchange (502) whose error text the client gets to see.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrNoTargetURL) {
		h.logger.Error("no target URL configured",
			"path", c.Request().URL.Path,
		)
		return c.String(http.StatusInternalServerError, "Error: target_url not configured")
	}

	h.logger.Error("upstream request failed",
		"err", err,
		"path", c.Request().URL.Path,
	)
	return c.String(http.StatusBadGateway, fmt.Sprintf("Error fetching upstream: %v", err))
}
