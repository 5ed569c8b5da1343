package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// allowedMethods is advertised on preflight responses.
var allowedMethods = strings.Join([]string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
}, ", ")

// CORS returns an Echo middleware implementing the permissive CORS policy:
// every response carries Access-Control-Allow-Origin: *, and a preflight
// (OPTIONS with Origin and Access-Control-Request-Method) is answered
// locally with 200. A plain OPTIONS without preflight headers passes
// through and is proxied like any other method.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response().Header()
			res.Set(echo.HeaderAccessControlAllowOrigin, "*")

			req := c.Request()
			if req.Method == http.MethodOptions &&
				req.Header.Get(echo.HeaderOrigin) != "" &&
				req.Header.Get(echo.HeaderAccessControlRequestMethod) != "" {
				res.Set(echo.HeaderAccessControlAllowMethods, allowedMethods)
				requested := req.Header.Get(echo.HeaderAccessControlRequestHeaders)
				if requested == "" {
					requested = "*"
				}
				res.Set(echo.HeaderAccessControlAllowHeaders, requested)
				res.Set(echo.HeaderAccessControlMaxAge, "600")
				return c.NoContent(http.StatusOK)
			}

			return next(c)
		}
	}
}
