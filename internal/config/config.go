// Package config handles layered configuration: an optional TOML file,
// JSON_FORCE_PROXY_* environment variables, and CLI flags, later layers
// overriding earlier ones field by field.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/json-force-proxy/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong. Env bindings carry the
// JSON_FORCE_PROXY_ prefix; flags win over environment values.
type CLI struct {
	Config         string  `kong:"short='c',help='Path to TOML config file.',env='JSON_FORCE_PROXY_CONFIG'"`
	Target         string  `kong:"short='t',help='Target base URL to proxy to (overrides config).',env='JSON_FORCE_PROXY_TARGET_URL'"`
	Host           string  `kong:"short='H',help='Listen host (overrides config).',env='JSON_FORCE_PROXY_HOST'"`
	Port           int     `kong:"short='p',help='Listen port (overrides config).',env='JSON_FORCE_PROXY_PORT'"`
	RequestTimeout float64 `kong:"help='Upstream request timeout in seconds (overrides config).',env='JSON_FORCE_PROXY_REQUEST_TIMEOUT'"`
	LogLevel       string  `kong:"short='l',help='Log level: debug|info|warning|error|critical (overrides config).',env='JSON_FORCE_PROXY_LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds the forwarding target and connection settings.
// TargetURL may be empty at startup; requests are then answered with the
// not-configured error until a reload supplies one.
type UpstreamConfig struct {
	TargetURL       string  `toml:"target_url"`
	TimeoutSeconds  float64 `toml:"timeout_seconds"`
	IdleConnections int     `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load resolves the configuration: TOML file (if any), then CLI/env
// overrides, then validation and defaults. The file layer is optional:
// when no explicit path is given (via --config or JSON_FORCE_PROXY_CONFIG)
// and nothing exists at the search paths, the proxy runs on env, flags, and
// defaults alone.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Target != "" {
		c.Upstream.TargetURL = cli.Target
	}
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.RequestTimeout != 0 {
		c.Upstream.TimeoutSeconds = cli.RequestTimeout
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Target URL: optional, but must be a sane absolute URL when present.
	if c.Upstream.TargetURL != "" {
		u, err := url.Parse(c.Upstream.TargetURL)
		if err != nil {
			return fmt.Errorf("upstream.target_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("upstream.target_url must use http or https; got %q", c.Upstream.TargetURL)
		}
		if u.Host == "" {
			return fmt.Errorf("upstream.target_url has no host; got %q", c.Upstream.TargetURL)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %v", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields. The Python-style level names (warning, critical) are
	// accepted alongside the slog ones.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "warning", "error", "critical", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warning, error, critical; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled). Every path is
	// forwardable here, so the scrape endpoint may only shadow itself; it
	// must not claim the root or an operational route.
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if p == "/" {
			return fmt.Errorf("metrics.path must not be %q", p)
		}
		for _, reserved := range []string{"/healthz", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For numeric fields (Port, TimeoutSeconds, etc.), zero means "unset" because
// TOML cannot distinguish between an explicit 0 and an omitted key. Setting
// port=0 in the config file therefore results in the default port (8080).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 10.0
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the upstream request timeout as a duration.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Source returns the path of the config file this Config was loaded from,
// or empty string when no file layer was present.
func (c *Config) Source() string {
	return c.filePath
}
