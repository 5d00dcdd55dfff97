package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/authroles"
	redisadapter "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/redis"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/sessioncodec"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/rbac"
	httpx "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/http"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/service"
)

// ErrRedisRequired is returned when the deny-list is enabled without a Redis client.
var ErrRedisRequired = errors.New("revocation enabled but no redis client configured")

// AuthConfig contains configuration for the auth and access-control components.
type AuthConfig struct {
	Config      *config.AppConfig
	Backend     ports.BackendClient
	Revocations ports.RevocationStore
	Audit       ports.AuditRecorder
	Metrics     *metrics.Metrics
	Clock       clock.Clock
	Logger      *slog.Logger
}

// AuthComponents are the services the HTTP layer is built from.
type AuthComponents struct {
	Sessions *httpx.SessionStore
	Auth     *service.AuthService
	Gateway  *service.GatewayService
	Policy   *rbac.Policy
}

// BuildAuthComponents wires the codec, session store, role mapping, permission table and
// services. Malformed aliases, permission files or login expressions are startup errors.
func BuildAuthComponents(cfg AuthConfig) (*AuthComponents, error) {
	appCfg := cfg.Config
	logger := cfg.Logger

	roles, err := authroles.NewStaticRoleMapper(appCfg.Auth.RoleAliases)
	if err != nil {
		return nil, fmt.Errorf("role aliases: %w", err)
	}

	policy, err := LoadPolicy(appCfg.RBAC)
	if err != nil {
		return nil, err
	}

	fields := LoginFields(appCfg.Backend.Login)
	if err = fields.Validate(); err != nil {
		return nil, fmt.Errorf("login expressions: %w", err)
	}

	// A secret that fails validation is never used to sign or verify cookies.
	secret := []byte(appCfg.Session.Secret)
	if len(secret) < config.MinSecretBytes {
		secret = nil
	}
	codec := sessioncodec.New(sessioncodec.Options{
		Secret: secret,
		Clock:  cfg.Clock,
	})
	if !codec.Configured() {
		logger.Warn("session secret missing or invalid; every session is treated as absent")
	}

	sessions := httpx.NewSessionStore(httpx.SessionStoreOptions{
		Codec: codec,
		Cookie: httpx.SessionCookieConfig{
			Name:   appCfg.Session.CookieName,
			Domain: appCfg.Session.CookieDomain,
			Windows: domainauth.Windows{
				Inactivity: appCfg.Session.InactivityTimeout,
				Absolute:   appCfg.Session.AbsoluteTimeout,
			},
			Insecure: insecureCookies(appCfg),
		},
		Support: httpx.SessionStoreSupport{
			Revocations: cfg.Revocations,
			Clock:       cfg.Clock,
			Logger:      logger.With("component", "session_store"),
		},
	})

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Backend: cfg.Backend,
		Roles:   roles,
		Support: service.AuthSupport{
			Revocations: cfg.Revocations,
			Audit:       cfg.Audit,
			Metrics:     cfg.Metrics,
			Fields:      fields,
			Logger:      logger.With("component", "auth_service"),
		},
	})

	gateway := service.NewGatewayService(service.GatewayServiceOptions{
		Backend: cfg.Backend,
		Policy:  policy,
		Support: service.GatewaySupport{
			Audit:   cfg.Audit,
			Metrics: cfg.Metrics,
			Logger:  logger.With("component", "gateway_service"),
		},
	})

	return &AuthComponents{
		Sessions: sessions,
		Auth:     authSvc,
		Gateway:  gateway,
		Policy:   policy,
	}, nil
}

// LoadPolicy returns the permission table from RBAC_POLICY_FILE, or the built-in table.
func LoadPolicy(cfg config.RBACConfig) (*rbac.Policy, error) {
	if cfg.PolicyFile == "" {
		return rbac.MustDefaultPolicy(), nil
	}
	policy, err := rbac.LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("permission table: %w", err)
	}
	return policy, nil
}

// LoginFields converts the configured expressions.
func LoginFields(cfg config.LoginExprConfig) service.LoginFields {
	return service.LoginFields{
		Token:       cfg.TokenExpr,
		Username:    cfg.UsernameExpr,
		Role:        cfg.RoleExpr,
		DisplayName: cfg.DisplayNameExpr,
		Email:       cfg.EmailExpr,
	}
}

// BuildRevocationStore returns the Redis deny-list, or nil when it is disabled.
func BuildRevocationStore(cfg config.RevocationConfig, client redis.UniversalClient, clk clock.Clock) (ports.RevocationStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, ErrRedisRequired
	}
	return redisadapter.NewRevocationStore(redisadapter.RevocationStoreOptions{
		Client: client,
		Prefix: cfg.KeyPrefix,
		Clock:  clk,
	}), nil
}
