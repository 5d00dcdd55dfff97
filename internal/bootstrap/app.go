package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	httpx "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/http"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/audit"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
)

const closeTimeout = 5 * time.Second

// AppDeps groups what New needs from main.
type AppDeps struct {
	Config *config.AppConfig     // Required
	Redis  redis.UniversalClient // Required when the deny-list is enabled
	Clock  clock.Clock
	Logger *slog.Logger
}

// App is the fully wired BFF.
type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	Handler       http.Handler
	Report        httpx.ConfigReport
	Auth          *AuthComponents
	Observability ObservabilityContainer

	audit *audit.Recorder
	dev   *devBackendServer
}

// New builds every component from configuration. Incomplete secrets do not stop the
// process: the report is logged and served, and the affected operations fail closed.
func New(ctx context.Context, deps AppDeps) (*App, error) {
	if deps.Config == nil {
		return nil, errors.New("bootstrap: Config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := clock.OrReal(deps.Clock)

	report := ConfigReport(cfg)
	logConfigReport(logger, report)

	obs, err := buildObservability(ctx, logger, cfg.Observability)
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, logger: logger, Report: report, Observability: obs}

	var baseURL string
	if cfg.Backend.IsDevMode() {
		app.dev, err = startDevBackend(cfg.Backend, clk, logger)
		if err != nil {
			return nil, errors.Join(err, app.Close(ctx))
		}
		baseURL = app.dev.url
	}

	client := BuildBackendClient(BackendConfig{
		Backend: cfg.Backend,
		BaseURL: baseURL,
		Dev:     cfg.IsDev,
		Clock:   clk,
		Metrics: obs.Metrics,
		Tracer:  obs.Tracer,
		Logger:  logger,
	})

	revocations, err := BuildRevocationStore(cfg.Revocation, deps.Redis, clk)
	if err != nil {
		return nil, errors.Join(err, app.Close(ctx))
	}

	app.audit = BuildAuditRecorder(AuditConfig{
		Audit:   cfg.Observability.Audit,
		Backend: client,
		Metrics: obs.Metrics,
		Clock:   clk,
		Logger:  logger,
	})

	app.Auth, err = BuildAuthComponents(AuthConfig{
		Config:      cfg,
		Backend:     client,
		Revocations: revocations,
		Audit:       app.audit,
		Metrics:     obs.Metrics,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Join(err, app.Close(ctx))
	}

	app.Handler = BuildHTTPHandler(HTTPHandlerConfig{
		Config:   cfg,
		Auth:     app.Auth.Auth,
		Gateway:  app.Auth.Gateway,
		Sessions: app.Auth.Sessions,
		Report:   report,
		Metrics:  obs.Metrics,
		Logger:   logger,
	})

	return app, nil
}

// Run serves HTTP (and metrics when enabled) until ctx is cancelled or a server fails,
// then shuts every server down.
func (a *App) Run(ctx context.Context) error {
	servers := map[string]*http.Server{
		"HTTP": newServer(a.Handler, a.cfg.HTTP.Addr, a.cfg.HTTP),
	}
	if a.cfg.Observability.Metrics.IsEnabled() {
		servers["metrics"] = newServer(metrics.Handler(a.Observability.Registry), a.cfg.Observability.Metrics.Addr, a.cfg.HTTP)
	}

	group, gctx := errgroup.WithContext(ctx)
	for name, srv := range servers {
		group.Go(func() error {
			if err := serve(a.logger, name, srv); err != nil {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down servers")
		var errs []error
		for _, srv := range servers {
			errs = append(errs, ShutdownHTTPServer(ShutdownConfig{
				Context: context.WithoutCancel(gctx),
				Server:  srv,
				Timeout: a.cfg.HTTP.ShutdownTimeout,
				Logger:  a.logger,
			}))
		}
		return errors.Join(errs...)
	})
	return group.Wait()
}

// Close flushes audit and tracing and stops the dev backend.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	var errs []error
	if a.audit != nil {
		errs = append(errs, a.audit.Close(ctx))
	}
	if a.Observability.Shutdown != nil {
		errs = append(errs, a.Observability.Shutdown(ctx))
	}
	errs = append(errs, a.dev.close(ctx))
	return errors.Join(errs...)
}
