package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"json-force-proxy/internal/client"
	"json-force-proxy/internal/config"
	"json-force-proxy/internal/metrics"
	"json-force-proxy/internal/service"
)

func newRoutedEcho(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	uc := client.NewUpstreamClient(cfg, logger, m)
	svc := service.NewForwardService(uc, config.NewStore(cfg), logger)

	proxy := NewProxyHandler(svc, logger)
	health := NewHealthHandler(config.NewStore(cfg), "test")

	e := echo.New()
	RegisterRoutes(e, cfg, proxy, health, m)
	return e
}

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TargetURL:       upstream.URL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
	e := newRoutedEcho(t, cfg)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK},
		{"GET / proxied", http.MethodGet, "/", http.StatusOK},
		{"GET arbitrary path proxied", http.MethodGet, "/api/v2/users/123", http.StatusOK},
		{"POST arbitrary path proxied", http.MethodPost, "/submit", http.StatusOK},
		{"DELETE deep path proxied", http.MethodDelete, "/a/b/c/d", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_OperationalRoutesNotProxied(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		upstreamHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TargetURL:       upstream.URL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
	e := newRoutedEcho(t, cfg)

	for _, path := range []string{"/healthz", "/proxy/status"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}

	if upstreamHits != 0 {
		t.Errorf("operational routes reached the upstream %d times, want 0", upstreamHits)
	}
}

func TestRegisterRoutes_MetricsEnabled(t *testing.T) {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{TimeoutSeconds: 10, IdleConnections: 10},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	e := newRoutedEcho(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "json_force_proxy") {
		t.Error("expected proxy metrics in the scrape output")
	}
}

func TestRegisterRoutes_MetricsDisabledPathIsProxied(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TargetURL:       upstream.URL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
		Metrics: config.MetricsConfig{Enabled: false, Path: "/metrics"},
	}
	e := newRoutedEcho(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// With metrics off, /metrics is just another forwardable path.
	if gotPath != "/metrics" {
		t.Errorf("upstream path = %q, want %q", gotPath, "/metrics")
	}
}

func TestRegisterRoutes_NoTargetStillServesHealth(t *testing.T) {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{TimeoutSeconds: 10, IdleConnections: 10},
	}
	e := newRoutedEcho(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/anything", http.NoBody)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("GET /anything status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if got := rec.Body.String(); got != "Error: target_url not configured" {
		t.Errorf("body = %q, want the not-configured error", got)
	}
}
