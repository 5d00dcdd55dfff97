package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/backend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/devbackend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
)

// BackendConfig contains configuration for the backend proxy client.
type BackendConfig struct {
	Backend config.BackendConfig
	BaseURL string // overrides Backend.BaseURL, used for the in-process dev backend
	Dev     bool
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// BuildBackendClient creates the signed backend client. A missing base URL or secret
// yields a client whose calls fail with CONFIG_ERROR.
func BuildBackendClient(cfg BackendConfig) *backend.Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cfg.Backend.BaseURL
	}
	return backend.NewClient(backend.Options{
		BaseURL:         baseURL,
		Signer:          signing.NewSigner([]byte(cfg.Backend.SigningSecret)),
		Timeout:         cfg.Backend.Timeout,
		MaxRedirects:    cfg.Backend.MaxRedirects,
		RedirectDomains: cfg.Backend.RedirectDomains,
		Dev:             cfg.Dev,
		Clock:           cfg.Clock,
		Logger:          cfg.Logger.With("component", "backend_client"),
		Metrics:         cfg.Metrics,
		Tracer:          cfg.Tracer,
	})
}

// devBackendServer is the in-process backend served on a loopback port.
type devBackendServer struct {
	server *http.Server
	url    string
}

// startDevBackend serves the dev backend on 127.0.0.1 with an ephemeral port.
func startDevBackend(cfg config.BackendConfig, clk clock.Clock, logger *slog.Logger) (*devBackendServer, error) {
	devUsers, err := cfg.ParseDevUsers()
	if err != nil {
		return nil, fmt.Errorf("dev backend users: %w", err)
	}
	users := make([]devbackend.User, 0, len(devUsers))
	for _, u := range devUsers {
		users = append(users, devbackend.User{
			Username:    u.Username,
			Password:    u.Password,
			Role:        u.Role,
			DisplayName: u.DisplayName,
			Email:       u.Email,
		})
	}

	handler, err := devbackend.NewServer(devbackend.Config{
		Secret: []byte(cfg.SigningSecret),
		Users:  users,
		Skew:   cfg.SignatureSkew,
		Clock:  clk,
		Logger: logger.With("component", "dev_backend"),
	})
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for dev backend: %w", err)
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("dev backend failed", "error", serveErr)
		}
	}()

	logger.Warn("using in-process dev backend; not for production", "addr", server.Addr, "users", len(users))
	return &devBackendServer{server: server, url: "http://" + server.Addr}, nil
}

func (d *devBackendServer) close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}
