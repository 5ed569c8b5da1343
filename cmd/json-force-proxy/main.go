package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"json-force-proxy/internal/client"
	"json-force-proxy/internal/config"
	"json-force-proxy/internal/handler"
	"json-force-proxy/internal/metrics"
	"json-force-proxy/internal/middleware"
	"json-force-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Values from a local .env file feed Kong's env bindings; real
	// environment variables keep precedence, and a missing file is fine.
	_ = godotenv.Load()

	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("json-force-proxy"),
		kong.Description("Forwarding proxy that rewrites upstream responses to Content-Type: application/json."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			config.NewStore,
			newLogger,
			newEcho,
			metrics.New,
			client.NewUpstreamClient,
			service.NewForwardService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, logStartupInfo, watchReload, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error", "critical":
		// slog has no critical level; both map to error.
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks. ReadTimeout also
	// bounds slow request-body reads, which complete before the upstream
	// call is issued.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) so responses to slow clients are not cut
	// off; the upstream exchange itself is bounded by the per-request timeout.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.CORS())

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func logStartupInfo(cfg *config.Config, logger *slog.Logger) {
	if path := cfg.Source(); path != "" {
		logger.Info("loaded config file", "path", path)
	}

	if cfg.Upstream.TargetURL == "" {
		logger.Warn("no target URL configured; requests will be answered with 500 until one is provided")
		return
	}

	logger.Info("proxying to upstream",
		"target_url", cfg.Upstream.TargetURL,
		"timeout_seconds", cfg.Upstream.TimeoutSeconds,
	)
}

// watchReload re-runs the layered config load on SIGHUP and publishes the
// result to the store. CLI and environment overrides were captured at parse
// time and keep their precedence; a failed reload keeps the previous
// configuration.
func watchReload(lc fx.Lifecycle, cli *config.CLI, store *config.Store, logger *slog.Logger) {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			signal.Notify(sig, syscall.SIGHUP)
			go func() {
				for {
					select {
					case <-sig:
						cfg, err := config.Load(cli)
						if err != nil {
							logger.Error("config reload failed", "err", err)
							continue
						}
						store.Swap(cfg)
						logger.Info("configuration reloaded",
							"target_url", cfg.Upstream.TargetURL,
							"timeout_seconds", cfg.Upstream.TimeoutSeconds,
						)
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			signal.Stop(sig)
			close(done)
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
