// Package model defines shared types for the proxy.
package model

import (
	"context"
	"net/http"
)

// ProxyRequest represents a client request to be forwarded upstream.
// Query holds the raw query string exactly as received; it is appended to
// the upstream URL without re-encoding. Body is the fully read request body
// (empty slice when the client sent none).
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// ProxyResponse represents a buffered upstream response.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
