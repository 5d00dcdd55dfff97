package devbackend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/backend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/testutil"
)

var secret = []byte("dev-secret")

func newTestServer(t *testing.T) (*Server, *clock.Fixed) {
	t.Helper()
	clk := testutil.NewClock()
	s, err := NewServer(Config{
		Secret: secret,
		Users: []User{
			{Username: "ana", Password: "pw", Role: "ADMIN", DisplayName: "Ana", Email: "ana@example.com"},
		},
		Clock:  clk,
		Logger: testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	return s, clk
}

type envelopeOpt func(*backend.Envelope)

func envelope(t *testing.T, at time.Time, action string, payload any, opts ...envelopeOpt) backend.Envelope {
	t.Helper()
	raw, err := signing.CanonicalPayload(payload)
	require.NoError(t, err)
	env := backend.Envelope{
		Action:        action,
		Payload:       raw,
		Timestamp:     at.UnixMilli(),
		Nonce:         "n-" + action + "-" + at.Format(time.RFC3339Nano),
		CorrelationID: "corr",
	}
	for _, o := range opts {
		o(&env)
	}
	sig, err := signing.NewSigner(secret).Sign(env.SignInput())
	require.NoError(t, err)
	env.Signature = sig
	return env
}

func withNonce(n string) envelopeOpt   { return func(e *backend.Envelope) { e.Nonce = n } }
func withToken(tok string) envelopeOpt { return func(e *backend.Envelope) { e.AuthToken = tok } }

func post(t *testing.T, s *Server, env backend.Envelope) (int, response, json.RawMessage) {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/exec", bytes.NewReader(body)))

	var out struct {
		response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out.response, out.Data
}

func login(t *testing.T, s *Server, at time.Time) string {
	t.Helper()
	_, resp, data := post(t, s, envelope(t, at, ActionLogin, map[string]string{"username": "ana", "password": "pw"}))
	require.True(t, resp.OK)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Token, 43)
	return out.Token
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{Users: []User{{Username: "a", Password: "b"}}})
	assert.Error(t, err)
	_, err = NewServer(Config{Secret: secret})
	assert.Error(t, err)
	_, err = NewServer(Config{Secret: secret, Users: []User{{Username: "a"}}})
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	s, clk := newTestServer(t)

	code, resp, data := post(t, s, envelope(t, clk.Now(), ActionLogin, map[string]string{"username": "ana", "password": "pw"}))
	assert.Equal(t, http.StatusOK, code)
	require.True(t, resp.OK)
	assert.Equal(t, "corr", resp.CorrelationID)

	var out struct {
		Token string            `json:"token"`
		User  map[string]string `json:"user"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, map[string]string{
		"username": "ana", "role": "ADMIN", "displayName": "Ana", "email": "ana@example.com",
	}, out.User)
}

func TestLogin_Failures(t *testing.T) {
	s, clk := newTestServer(t)

	tests := []struct {
		name    string
		payload any
		code    string
	}{
		{"wrong password", map[string]string{"username": "ana", "password": "nope"}, CodeAuthFailed},
		{"unknown user", map[string]string{"username": "bob", "password": "pw"}, CodeAuthFailed},
		{"missing password", map[string]string{"username": "ana"}, CodeValidation},
		{"no payload", nil, CodeValidation},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := clk.Now().Add(time.Duration(i) * time.Millisecond)
			_, resp, _ := post(t, s, envelope(t, at, ActionLogin, tt.payload))
			require.False(t, resp.OK)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestEchoRequiresToken(t *testing.T) {
	s, clk := newTestServer(t)
	token := login(t, s, clk.Now())

	_, resp, data := post(t, s, envelope(t, clk.Now(), "clients.get", map[string]string{"id": "7"}, withToken(token)))
	require.True(t, resp.OK)
	assert.JSONEq(t, `{"action":"clients.get","payload":{"id":"7"},"user":"ana"}`, string(data))

	_, resp, _ = post(t, s, envelope(t, clk.Now().Add(time.Millisecond), "clients.get", nil))
	require.False(t, resp.OK)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)

	_, resp, _ = post(t, s, envelope(t, clk.Now().Add(2*time.Millisecond), "clients.get", nil, withToken("forged")))
	require.False(t, resp.OK)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	s, clk := newTestServer(t)
	token := login(t, s, clk.Now())

	_, resp, _ := post(t, s, envelope(t, clk.Now(), ActionLogout, nil, withToken(token)))
	require.True(t, resp.OK)

	_, resp, _ = post(t, s, envelope(t, clk.Now().Add(time.Millisecond), "clients.list", nil, withToken(token)))
	require.False(t, resp.OK)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}

func TestTokenExpiry(t *testing.T) {
	s, clk := newTestServer(t)
	token := login(t, s, clk.Now())

	clk.Advance(8*time.Hour + time.Second)
	_, resp, _ := post(t, s, envelope(t, clk.Now(), "clients.list", nil, withToken(token)))
	require.False(t, resp.OK)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}

func TestExpireTokens(t *testing.T) {
	s, clk := newTestServer(t)
	token := login(t, s, clk.Now())
	s.ExpireTokens()

	_, resp, _ := post(t, s, envelope(t, clk.Now(), "clients.list", nil, withToken(token)))
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}

func TestRejectsStaleTimestamp(t *testing.T) {
	s, clk := newTestServer(t)

	_, resp, _ := post(t, s, envelope(t, clk.Now().Add(-10*time.Minute), ActionLogin, nil))
	require.False(t, resp.OK)
	assert.Equal(t, CodeStaleRequest, resp.Error.Code)

	_, resp, _ = post(t, s, envelope(t, clk.Now().Add(10*time.Minute), ActionLogin, nil))
	assert.Equal(t, CodeStaleRequest, resp.Error.Code)
}

func TestRejectsTamperedSignature(t *testing.T) {
	s, clk := newTestServer(t)

	env := envelope(t, clk.Now(), "clients.list", map[string]int{"page": 1})
	env.Payload = json.RawMessage(`{"page":2}`)
	_, resp, _ := post(t, s, env)
	require.False(t, resp.OK)
	assert.Equal(t, CodeInvalidSignature, resp.Error.Code)

	env = envelope(t, clk.Now(), "clients.list", nil)
	env.Signature = "zz"
	_, resp, _ = post(t, s, env)
	assert.Equal(t, CodeInvalidSignature, resp.Error.Code)
}

func TestRejectsEmptyNonce(t *testing.T) {
	s, clk := newTestServer(t)
	_, resp, _ := post(t, s, envelope(t, clk.Now(), "clients.list", nil, withNonce("")))
	assert.Equal(t, CodeInvalidSignature, resp.Error.Code)
}

func TestRejectsReplayedNonce(t *testing.T) {
	s, clk := newTestServer(t)
	env := envelope(t, clk.Now(), ActionLogin, map[string]string{"username": "ana", "password": "pw"}, withNonce("once"))

	_, resp, _ := post(t, s, env)
	require.True(t, resp.OK)

	_, resp, _ = post(t, s, env)
	require.False(t, resp.OK)
	assert.Equal(t, CodeReplayedNonce, resp.Error.Code)

	// Once the window has passed the timestamp itself is stale.
	clk.Advance(11 * time.Minute)
	_, resp, _ = post(t, s, env)
	assert.Equal(t, CodeStaleRequest, resp.Error.Code)
}

func TestMethodAndBodyChecks(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exec", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/exec", bytes.NewBufferString("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeValidation)
}
