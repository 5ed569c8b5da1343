package service

import (
	"net/http"
	"strings"
)

// forwardableRequestHeaders are the request headers forwarded upstream.
// Headers whose lowercased name starts with "x-" are forwarded as well;
// everything else, notably Host and hop-by-hop headers, is dropped.
var forwardableRequestHeaders = map[string]bool{
	"authorization":     true,
	"accept":            true,
	"content-type":      true,
	"accept-encoding":   true,
	"accept-language":   true,
	"user-agent":        true,
	"cache-control":     true,
	"if-none-match":     true,
	"if-modified-since": true,
}

// skippedResponseHeaders are never copied from upstream responses. They
// describe the framing and encoding of the upstream transfer; the transport
// recomputes them for the response the proxy writes, and Content-Type is
// re-asserted separately.
var skippedResponseHeaders = map[string]bool{
	"content-type":      true,
	"content-encoding":  true,
	"content-length":    true,
	"transfer-encoding": true,
	"connection":        true,
}

// filterRequestHeaders returns the subset of src eligible for forwarding.
func filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		name := strings.ToLower(key)
		if forwardableRequestHeaders[name] || strings.HasPrefix(name, "x-") {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}

// filterResponseHeaders returns src minus the skipped set, preserving the
// original key casing and value multiplicity.
func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if !skippedResponseHeaders[strings.ToLower(key)] {
			dst[key] = vals
		}
	}
	return dst
}
