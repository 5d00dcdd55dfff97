package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/testutil"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		mark("outer"), nil, mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestCorrelation(t *testing.T) {
	var seen string
	h := Correlation()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = correlation.FromContext(r.Context())
	}))

	t.Run("reuses a well-formed inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlation.Header, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(correlation.Header))
	})

	t.Run("replaces an unsafe inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlation.Header, "bad id\r\n")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.NotEqual(t, "bad id\r\n", seen)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(correlation.Header))
	})

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(correlation.Header))
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusTeapot)
	}), Correlation(), Logging(testutil.CaptureLogger(&buf)))

	req := httptest.NewRequest(http.MethodPost, "/api/exports", nil)
	req.Header.Set(correlation.Header, "log-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http", line["msg"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/api/exports", line["path"])
	assert.InDelta(t, http.StatusAccepted, line["status"], 0)
	assert.Equal(t, "log-1", line["correlation_id"])
	assert.Contains(t, line, "duration")
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Correlation(), Recover(testutil.CaptureLogger(&buf)))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clients", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SERVER_ERROR", env.Error.Code)
	assert.Equal(t, "Internal server error", env.Error.Message)
	assert.Empty(t, env.Error.Detail)
	assert.NotEmpty(t, env.CorrelationID)

	logged := buf.String()
	assert.Contains(t, logged, `"msg":"panic"`)
	assert.Contains(t, logged, "boom")
	assert.True(t, strings.Contains(logged, "goroutine"), "stack is logged")
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	h := Recover(testutil.DiscardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New(nil)
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.InDelta(t, 2, promtest.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "403")), 0)

	passthrough := http.NotFoundHandler()
	assert.NotNil(t, Metrics(nil)(passthrough))
}
