package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/authroles"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/backend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/devbackend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/sessioncodec"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/rbac"
	authmocks "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/mocks/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/service"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/testutil"
)

var (
	harnessSessionSecret = []byte("0123456789abcdef0123456789abcdef-session")
	harnessBackendSecret = []byte("backend-shared-secret")
)

// harnessUsers are the dev backend accounts: one per portal role, one with an unmapped
// role and one whose profile is too large to fit in a cookie.
var harnessUsers = []devbackend.User{ //nolint:gochecknoglobals // test fixture
	{Username: "admin", Password: "pw-admin", Role: "ADMIN", DisplayName: "Admin"},
	{Username: "ana", Password: "pw-ana", Role: "GESTOR", DisplayName: "Ana", Email: "ana@example.com"},
	{Username: "luis", Password: "pw-luis", Role: "ANALYST"},
	{Username: "vera", Password: "pw-vera", Role: "VIEWER"},
	{Username: "ghost", Password: "pw-ghost", Role: "CONTRACTOR"},
	{Username: "wordy", Password: "pw-wordy", Role: "VIEWER", DisplayName: strings.Repeat("W", 5000)},
}

type harnessOptions struct {
	CSRF      *CSRFConfig
	StaticDir string
	Config    ConfigReport
}

// harness runs the full router against an in-process signed backend.
type harness struct {
	t           *testing.T
	clock       *clock.Fixed
	dev         *devbackend.Server
	auditor     *authmocks.RecordingAuditor
	revocations *authmocks.MemoryRevocationStore
	metrics     *metrics.Metrics
	store       *SessionStore
	handler     http.Handler
	cookies     map[string]*http.Cookie
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	clk := testutil.NewClock()
	logger := testutil.DiscardLogger()

	dev, err := devbackend.NewServer(devbackend.Config{
		Secret: harnessBackendSecret,
		Users:  harnessUsers,
		Clock:  clk,
		Logger: logger,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)

	m := metrics.New(nil)
	client := backend.NewClient(backend.Options{
		BaseURL: srv.URL,
		Signer:  signing.NewSigner(harnessBackendSecret),
		Timeout: 5 * time.Second,
		Clock:   clk,
		Logger:  logger,
		Metrics: m,
	})
	roles, err := authroles.NewStaticRoleMapper(map[string]string{"GESTOR": "SUPERVISOR"})
	require.NoError(t, err)

	auditor := &authmocks.RecordingAuditor{}
	revocations := authmocks.NewMemoryRevocationStore()
	store := NewSessionStore(SessionStoreOptions{
		Codec:  sessioncodec.New(sessioncodec.Options{Secret: harnessSessionSecret, Clock: clk}),
		Cookie: SessionCookieConfig{Windows: testutil.DefaultWindows},
		Support: SessionStoreSupport{
			Revocations: revocations,
			Clock:       clk,
			Logger:      logger,
		},
	})

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Backend: client,
		Roles:   roles,
		Support: service.AuthSupport{Revocations: revocations, Audit: auditor, Metrics: m, Logger: logger},
	})
	gateway := service.NewGatewayService(service.GatewayServiceOptions{
		Backend: client,
		Policy:  rbac.MustDefaultPolicy(),
		Support: service.GatewaySupport{Audit: auditor, Metrics: m, Logger: logger},
	})

	handler := NewRouter(RouterOptions{
		Services: RouterServices{Auth: authSvc, Gateway: gateway, Sessions: store},
		Settings: RouterSettings{
			CSRF:      opts.CSRF,
			StaticDir: opts.StaticDir,
			Config:    opts.Config,
		},
		Support: RouterSupport{Metrics: m, Logger: logger},
	})

	return &harness{
		t:           t,
		clock:       clk,
		dev:         dev,
		auditor:     auditor,
		revocations: revocations,
		metrics:     m,
		store:       store,
		handler:     handler,
		cookies:     make(map[string]*http.Cookie),
	}
}

// do serves req with the harness cookies attached and keeps any cookies the response sets.
func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	for _, c := range h.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(h.cookies, c.Name)
			continue
		}
		h.cookies[c.Name] = c
	}
	return rec
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) send(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c, ok := h.cookies[DefaultCSRFCookieName]; ok {
		req.Header.Set(DefaultCSRFHeaderName, c.Value)
	}
	return h.do(req)
}

func (h *harness) login(username, password string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.send(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password})
}

// mustLogin logs in one of harnessUsers by name.
func (h *harness) mustLogin(username string) {
	h.t.Helper()
	for _, u := range harnessUsers {
		if u.Username == username {
			rec := h.login(u.Username, u.Password)
			require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
			return
		}
	}
	h.t.Fatalf("unknown harness user %q", username)
}

func (h *harness) sessionCookie() *http.Cookie {
	return h.cookies[DefaultSessionCookieName]
}

// decodedEnvelope is Envelope with Data left raw for per-test decoding.
type decodedEnvelope struct {
	OK            bool            `json:"ok"`
	Data          json.RawMessage `json:"data"`
	Error         *ErrorBody      `json:"error"`
	CorrelationID string          `json:"correlationId"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) decodedEnvelope {
	t.Helper()
	var env decodedEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.True(t, env.OK, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
