package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	httpx "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/http"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/service"
)

// HTTPHandlerConfig contains what the router needs from bootstrap.
type HTTPHandlerConfig struct {
	Config   *config.AppConfig
	Auth     *service.AuthService
	Gateway  *service.GatewayService
	Sessions *httpx.SessionStore
	Report   httpx.ConfigReport
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// BuildHTTPHandler creates the router with its middleware chain.
func BuildHTTPHandler(cfg HTTPHandlerConfig) http.Handler {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	var rules httpx.RouteRules
	if appCfg.HTTP.PublicRoutes != nil || appCfg.HTTP.OptionalAuthRoutes != nil {
		rules = httpx.NewRouteRules(appCfg.HTTP.PublicRoutes, appCfg.HTTP.OptionalAuthRoutes)
	}

	var csrf *httpx.CSRFConfig
	if appCfg.HTTP.CSRFEnabled {
		cfg.Logger.Info("CSRF protection enabled")
		csrf = &httpx.CSRFConfig{
			CookieDomain: appCfg.Session.CookieDomain,
			Insecure:     insecureCookies(appCfg),
		}
	}

	return httpx.NewRouter(httpx.RouterOptions{
		Services: httpx.RouterServices{
			Auth:     cfg.Auth,
			Gateway:  cfg.Gateway,
			Sessions: cfg.Sessions,
		},
		Settings: httpx.RouterSettings{
			Rules:     rules,
			CSRF:      csrf,
			StaticDir: appCfg.HTTP.StaticDir,
			Config:    cfg.Report,
			Dev:       appCfg.IsDev,
		},
		Support: httpx.RouterSupport{
			Metrics: cfg.Metrics,
			Logger:  cfg.Logger,
		},
	})
}

// insecureCookies drops the Secure attribute only for local plain-HTTP development.
func insecureCookies(cfg *config.AppConfig) bool {
	return cfg.IsDev && cfg.Session.CookieInsecure
}

func newServer(handler http.Handler, addr string, httpCfg config.HTTPConfig) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	readTimeout := httpCfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := httpCfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// serve runs server until it is shut down. http.ErrServerClosed is not an error.
func serve(logger *slog.Logger, name string, server *http.Server) error {
	logger.Info("starting "+name+" server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down an HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server", "addr", cfg.Server.Addr)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped", "addr", cfg.Server.Addr)
	}

	return nil
}
