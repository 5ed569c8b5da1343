package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newCORSEcho(handled *bool) *echo.Echo {
	e := echo.New()
	e.Use(CORS())
	e.Any("/*", func(c echo.Context) error {
		if handled != nil {
			*handled = true
		}
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestCORS_AllowOriginOnEveryResponse(t *testing.T) {
	e := newCORSEcho(nil)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		req := httptest.NewRequest(method, "/data", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
			t.Errorf("%s: Access-Control-Allow-Origin = %q, want %q", method, got, "*")
		}
	}
}

func TestCORS_PreflightHandledLocally(t *testing.T) {
	var handled bool
	e := newCORSEcho(&handled)

	req := httptest.NewRequest(http.MethodOptions, "/data", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	req.Header.Set(echo.HeaderAccessControlRequestHeaders, "Authorization, X-Trace-Id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusOK)
	}
	if handled {
		t.Error("preflight reached the handler; it must be answered by the middleware")
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowMethods); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST included", got)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowHeaders); got != "Authorization, X-Trace-Id" {
		t.Errorf("Access-Control-Allow-Headers = %q, want the requested headers echoed", got)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlMaxAge); got != "600" {
		t.Errorf("Access-Control-Max-Age = %q, want %q", got, "600")
	}
}

func TestCORS_PreflightWithoutRequestedHeaders(t *testing.T) {
	e := newCORSEcho(nil)

	req := httptest.NewRequest(http.MethodOptions, "/data", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowHeaders); got != "*" {
		t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, "*")
	}
}

func TestCORS_PlainOptionsPassesThrough(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h http.Header)
	}{
		{
			name:  "no origin no request method",
			setup: func(h http.Header) {},
		},
		{
			name: "origin without request method",
			setup: func(h http.Header) {
				h.Set(echo.HeaderOrigin, "https://app.example.com")
			},
		},
		{
			name: "request method without origin",
			setup: func(h http.Header) {
				h.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var handled bool
			e := newCORSEcho(&handled)

			req := httptest.NewRequest(http.MethodOptions, "/data", http.NoBody)
			tt.setup(req.Header)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if !handled {
				t.Error("non-preflight OPTIONS must reach the handler")
			}
			if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
			}
		})
	}
}
