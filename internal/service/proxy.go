// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"log/slog"
	"strings"

	"json-force-proxy/internal/client"
	"json-force-proxy/internal/config"
	"json-force-proxy/internal/model"
)

// contentTypeJSON is asserted on every successful proxy response, regardless
// of what the upstream declared.
const contentTypeJSON = "application/json"

// ErrNoTargetURL is returned when no upstream target URL is configured.
var ErrNoTargetURL = errors.New("target_url not configured")

// ForwardService handles the forwarding pipeline for proxy requests.
type ForwardService struct {
	client *client.UpstreamClient
	store  *config.Store
	logger *slog.Logger
}

// NewForwardService creates a ForwardService.
func NewForwardService(c *client.UpstreamClient, store *config.Store, logger *slog.Logger) *ForwardService {
	return &ForwardService{
		client: c,
		store:  store,
		logger: logger.With("component", "forward_service"),
	}
}

// Forward sends a ProxyRequest to the configured upstream and returns the
// response with filtered headers and Content-Type forced to application/json.
// The body comes back byte-identical to what the upstream sent; it is never
// parsed or validated as JSON.
//
// The target URL and timeout are read from the config store on every call,
// so a reload takes effect on the next request.
func (s *ForwardService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	cfg := s.store.Current()
	if cfg.Upstream.TargetURL == "" {
		return nil, ErrNoTargetURL
	}

	upstreamURL := buildUpstreamURL(cfg.Upstream.TargetURL, pr.Path, pr.Query)
	header := filterRequestHeaders(pr.Header)

	s.logger.Debug("proxying request",
		"method", pr.Method,
		"url", upstreamURL,
	)

	resp, err := s.client.Do(pr.Ctx, pr.Method, upstreamURL, header, pr.Body, cfg.Upstream.Timeout())
	if err != nil {
		return nil, err
	}

	resp.Header = filterResponseHeaders(resp.Header)
	resp.Header.Set("Content-Type", contentTypeJSON)
	return resp, nil
}

// buildUpstreamURL joins the target base URL with the inbound path and query.
// Exactly one trailing slash is stripped from the base; the root path maps to
// the bare base URL; the query string is appended verbatim, never re-encoded.
func buildUpstreamURL(base, path, rawQuery string) string {
	target := strings.TrimSuffix(base, "/")
	if p := strings.TrimPrefix(path, "/"); p != "" {
		target += "/" + p
	}
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}
