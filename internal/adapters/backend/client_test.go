package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/backend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/devbackend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/testutil"
)

var testSecret = []byte("backend-shared-secret")

func newDevBackend(t *testing.T, clk clock.Clock) (*devbackend.Server, *httptest.Server) {
	t.Helper()
	dev, err := devbackend.NewServer(devbackend.Config{
		Secret: testSecret,
		Users: []devbackend.User{
			{Username: "ana", Password: "s3cret", Role: "SUPERVISOR", DisplayName: "Ana"},
		},
		Clock:  clk,
		Logger: testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)
	return dev, srv
}

func newClient(baseURL string, mutate ...func(*backend.Options)) *backend.Client {
	opts := backend.Options{
		BaseURL: baseURL,
		Signer:  signing.NewSigner(testSecret),
		Timeout: 5 * time.Second,
		Logger:  testutil.DiscardLogger(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return backend.NewClient(opts)
}

func TestCall_LoginThenEcho(t *testing.T) {
	clk := testutil.NewClock()
	_, srv := newDevBackend(t, clk)
	c := newClient(srv.URL, func(o *backend.Options) { o.Clock = clk })

	ctx := correlation.WithID(context.Background(), "corr-42")
	resp, err := c.Call(ctx, ports.BackendCall{
		Action:  devbackend.ActionLogin,
		Payload: map[string]string{"username": "ana", "password": "s3cret"},
	})
	require.NoError(t, err)
	require.True(t, resp.OK)
	assert.Equal(t, "corr-42", resp.CorrelationID)

	var login struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "SUPERVISOR", login.User.Role)

	resp, err = c.Call(ctx, ports.BackendCall{
		Action:    "statements.list",
		Payload:   map[string]any{"page": 2},
		AuthToken: login.Token,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"statements.list","payload":{"page":2},"user":"ana"}`, string(resp.Data))
}

func TestCall_StaleTimestampBecomesServerError(t *testing.T) {
	serverClock := testutil.NewClock()
	_, srv := newDevBackend(t, serverClock)
	stale := clock.NewFixed(serverClock.Now().Add(-10 * time.Minute))

	c := newClient(srv.URL, func(o *backend.Options) { o.Clock = stale })
	resp, err := c.Call(context.Background(), ports.BackendCall{Action: "statements.list"})
	require.Error(t, err)
	assert.True(t, apperrors.IsServer(err))
	require.NotNil(t, resp)
	assert.False(t, resp.OK)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "STALE")
	assert.Empty(t, resp.Error.Detail)

	dev := newClient(srv.URL, func(o *backend.Options) { o.Clock = stale; o.Dev = true })
	resp, err = dev.Call(context.Background(), ports.BackendCall{Action: "statements.list"})
	require.Error(t, err)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Detail, devbackend.CodeStaleRequest)
}

func TestCall_WrongSecretBecomesServerError(t *testing.T) {
	_, srv := newDevBackend(t, nil)
	c := newClient(srv.URL, func(o *backend.Options) { o.Signer = signing.NewSigner([]byte("wrong")) })

	resp, err := c.Call(context.Background(), ports.BackendCall{Action: "clients.list"})
	require.Error(t, err)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
}

func TestCall_PassThroughCodes(t *testing.T) {
	tests := []struct {
		backendCode string
		wantCode    string
		wantMsg     string
	}{
		{"VALIDATION_ERROR", "VALIDATION_ERROR", "bad page"},
		{"AUTH_FAILED", "AUTH_FAILED", "bad page"},
		{"UNAUTHORIZED", "UNAUTHORIZED", "bad page"},
		{"FORBIDDEN", "FORBIDDEN", "bad page"},
		{"REPLAYED_NONCE", "SERVER_ERROR", "Backend request failed"},
		{"INVALID_SIGNATURE", "SERVER_ERROR", "Backend request failed"},
		{"SHEET_LOCKED", "SERVER_ERROR", "Backend request failed"},
		{"CONFIG_ERROR", "SERVER_ERROR", "Backend request failed"},
		{"", "SERVER_ERROR", "Backend request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.backendCode, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"ok":false,"error":{"code":"`+tt.backendCode+`","message":"bad page"}}`)
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL).Call(context.Background(), ports.BackendCall{Action: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, string(apperrors.GetCode(err)))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
		})
	}
}

func TestCall_UnparseableResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"html error page", http.StatusInternalServerError, "<html>oops</html>"},
		{"not json 200", http.StatusOK, "hello"},
		{"json without ok", http.StatusOK, `{"data":1}`},
		{"ok envelope on 500", http.StatusInternalServerError, `{"ok":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL).Call(context.Background(), ports.BackendCall{Action: "x"})
			require.Error(t, err)
			assert.True(t, apperrors.IsServer(err))
			assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
		})
	}
}

func TestCall_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resp, err := newClient(url).Call(context.Background(), ports.BackendCall{Action: "x"})
	require.Error(t, err)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
	assert.Equal(t, "Backend service unavailable", resp.Error.Message)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestCall_NotConfigured(t *testing.T) {
	resp, err := newClient("").Call(context.Background(), ports.BackendCall{Action: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
	assert.Equal(t, "CONFIG_ERROR", resp.Error.Code)

	c := newClient("https://script.google.com/exec", func(o *backend.Options) { o.Signer = signing.NewSigner(nil) })
	assert.False(t, c.Configured())
	_, err = c.Call(context.Background(), ports.BackendCall{Action: "x"})
	assert.True(t, apperrors.IsConfig(err))
}

func TestCall_EnvelopeShape(t *testing.T) {
	var got backend.Envelope
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		header = r.Header.Get(correlation.Header)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"ok":true,"data":{"n":1}}`)
	}))
	defer srv.Close()

	clk := testutil.NewClock()
	c := newClient(srv.URL, func(o *backend.Options) {
		o.Clock = clk
		o.NonceFunc = func() string { return "nonce-1" }
	})
	ctx := correlation.WithID(context.Background(), "corr-1")
	_, err := c.Call(ctx, ports.BackendCall{
		Action:    "mail.send",
		Payload:   map[string]any{"to": "a@b.c", "amount": 10},
		AuthToken: "tok",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.send", got.Action)
	assert.Equal(t, clk.Now().UnixMilli(), got.Timestamp)
	assert.Equal(t, "nonce-1", got.Nonce)
	assert.Equal(t, "tok", got.AuthToken)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.Equal(t, "corr-1", header)
	assert.JSONEq(t, `{"amount":10,"to":"a@b.c"}`, string(got.Payload))
	assert.NoError(t, signing.NewSigner(testSecret).Verify(got.SignInput(), got.Signature))

	// authToken and correlationId are outside the signature.
	got.AuthToken = "other"
	got.CorrelationID = "other"
	assert.NoError(t, signing.NewSigner(testSecret).Verify(got.SignInput(), got.Signature))
}

func TestCall_FollowsRedirectsPreservingMethodAndBody(t *testing.T) {
	for _, status := range []int{
		http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect,
	} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var firstBody, secondBody string
			mux := http.NewServeMux()
			mux.HandleFunc("/exec", func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				firstBody = string(b)
				w.Header().Set("Location", "/echo?user_content_key=abc")
				w.WriteHeader(status)
			})
			mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "abc", r.URL.Query().Get("user_content_key"))
				b, _ := io.ReadAll(r.Body)
				secondBody = string(b)
				_, _ = io.WriteString(w, `{"ok":true,"data":"done"}`)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			resp, err := newClient(srv.URL+"/exec").Call(context.Background(), ports.BackendCall{Action: "x", Payload: map[string]int{"a": 1}})
			require.NoError(t, err)
			assert.JSONEq(t, `"done"`, string(resp.Data))
			assert.NotEmpty(t, firstBody)
			assert.Equal(t, firstBody, secondBody)
		})
	}
}

func TestCall_RedirectToAllowlistedDomain(t *testing.T) {
	var hosts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hosts = append(hosts, r.Host)
		if r.Host == "script.google.com" {
			w.Header().Set("Location", "http://script.googleusercontent.com/macros/echo")
			w.WriteHeader(http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	addr := srv.Listener.Addr().String()
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	c := newClient("http://script.google.com/macros/s/abc/exec", func(o *backend.Options) {
		o.HTTPClient = &http.Client{Transport: transport}
	})

	resp, err := c.Call(context.Background(), ports.BackendCall{Action: "x"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, []string{"script.google.com", "script.googleusercontent.com"}, hosts)
}

func TestCall_RejectsDisallowedRedirect(t *testing.T) {
	tests := []string{
		"https://evil.example.com/steal",
		"ftp://127.0.0.1/x",
		"https://10.0.0.1/x",
	}
	for _, location := range tests {
		t.Run(location, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Location", location)
				w.WriteHeader(http.StatusTemporaryRedirect)
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL, func(o *backend.Options) { o.Dev = true }).Call(context.Background(), ports.BackendCall{Action: "x"})
			require.Error(t, err)
			assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
			assert.Contains(t, resp.Error.Detail, "redirect target not allowed")
		})
	}
}

func TestCall_TooManyRedirects(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Location", r.URL.Path)
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/loop", func(o *backend.Options) { o.MaxRedirects = 3 })
	resp, err := c.Call(context.Background(), ports.BackendCall{Action: "x"})
	require.Error(t, err)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
	assert.Equal(t, int32(4), hits.Load())
}

func TestCall_ClientAbortDoesNotCancelBackendCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := newClient(srv.URL).Call(ctx, ports.BackendCall{Action: "x"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(srv.URL, func(o *backend.Options) { o.Timeout = 50 * time.Millisecond })
	resp, err := c.Call(context.Background(), ports.BackendCall{Action: "x"})
	require.Error(t, err)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
}

func TestCall_RecordsMetricsAndSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error":{"code":"FORBIDDEN","message":"no"}}`)
	}))
	defer srv.Close()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := metrics.New(nil)

	c := newClient(srv.URL, func(o *backend.Options) {
		o.Metrics = m
		o.Tracer = tp.Tracer("test")
	})
	ctx := correlation.WithID(context.Background(), "corr-9")
	_, err := c.Call(ctx, ports.BackendCall{Action: "users.list"})
	require.Error(t, err)

	assert.InDelta(t, 1, promtest.ToFloat64(m.BackendCalls.WithLabelValues("users.list", "FORBIDDEN", "forbidden")), 0)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "backend.call", spans[0].Name())
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "users.list", attrs["portal.backend.action"])
	assert.Equal(t, "corr-9", attrs["portal.correlation_id"])
	assert.Equal(t, "FORBIDDEN", attrs["portal.backend.outcome"])
}

func TestCall_GeneratesCorrelationID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(correlation.Header))
		_, _ = io.WriteString(w, `{"ok":true,"correlationId":"backend-side"}`)
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).Call(context.Background(), ports.BackendCall{Action: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.CorrelationID)
	assert.False(t, strings.Contains(resp.CorrelationID, "backend-side"))
}
