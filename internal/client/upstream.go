// Package client provides the HTTP client used to reach the upstream service.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"json-force-proxy/internal/config"
	"json-force-proxy/internal/metrics"
	"json-force-proxy/internal/model"
)

// UpstreamClient sends requests to the upstream service. It keeps a pooled
// transport shared across concurrent requests and never follows redirects,
// so 3xx responses pass through with their status and Location intact.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling.
// The request timeout is applied per call in Do rather than on the client,
// so a config reload changes it without rebuilding the pool.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes a request against the upstream and returns the buffered
// response. A non-positive timeout means no deadline. The body is read fully
// while the deadline is still in force, so a stalled upstream body counts
// against the same timeout as the initial exchange.
func (c *UpstreamClient) Do(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration) (*model.ProxyResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	c.logger.Debug("upstream request",
		"method", method,
		"url", url,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	methodLabel := metrics.NormalizeMethod(method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(methodLabel).Observe(duration)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(methodLabel).Observe(duration)
		}
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(methodLabel).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(methodLabel, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// readBody drains the response body. The transport only decompresses
// encodings it negotiated itself; when a forwarded Accept-Encoding made the
// upstream answer with gzip, the encoding is undone here because the
// Content-Encoding header never reaches the inbound client.
func readBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return raw, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	decoded, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	resp.Header.Del("Content-Encoding")
	return decoded, nil
}
