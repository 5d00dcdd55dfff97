// Package backend implements the signed proxy client for the spreadsheet backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/tracing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 5
	maxResponseBytes    = 10 << 20

	outcomeOK = "ok"
)

// Generic messages shown to the browser when the real cause must stay internal.
const (
	msgUnavailable     = "Backend service unavailable"
	msgInvalidResponse = "Invalid response from backend service"
	msgRequestFailed   = "Backend request failed"
	msgNotConfigured   = "Backend connection is not configured"
)

var _ ports.BackendClient = (*Client)(nil)

// Envelope is the signed request body POSTed to the backend.
// Payload holds the canonical payload bytes, so the receiver verifies exactly what was signed.
type Envelope struct {
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     int64           `json:"timestamp"`
	Nonce         string          `json:"nonce"`
	Signature     string          `json:"signature"`
	AuthToken     string          `json:"authToken,omitempty"`
	CorrelationID string          `json:"correlationId"`
}

// SignInput returns the signed portion of the envelope.
func (e Envelope) SignInput() signing.SignInput {
	return signing.SignInput{
		Timestamp: e.Timestamp,
		Nonce:     e.Nonce,
		Action:    e.Action,
		Payload:   e.Payload,
	}
}

// rawResponse is the inbound backend envelope before normalization.
type rawResponse struct {
	OK    *bool           `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlationId"`
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	Signer          *signing.Signer
	HTTPClient      *http.Client
	Timeout         time.Duration
	MaxRedirects    int
	RedirectDomains []string
	Dev             bool
	Clock           clock.Clock
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Tracer          trace.Tracer
	NonceFunc       func() string
}

// Client signs calls and POSTs them to the backend, following redirects itself so that
// method and body survive every hop.
type Client struct {
	base         *url.URL
	baseErr      error
	signer       *signing.Signer
	http         *http.Client
	timeout      time.Duration
	maxRedirects int
	redirects    redirectPolicy
	dev          bool
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	nonce        func() string
}

// NewClient constructs a Client. Configuration problems surface as CONFIG_ERROR from Call.
func NewClient(opts Options) *Client {
	c := &Client{
		signer:       opts.Signer,
		timeout:      opts.Timeout,
		maxRedirects: opts.MaxRedirects,
		dev:          opts.Dev,
		clock:        clock.OrReal(opts.Clock),
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		nonce:        opts.NonceFunc,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRedirects <= 0 {
		c.maxRedirects = defaultMaxRedirects
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "backend_client")
	}
	if c.tracer == nil {
		c.tracer = tracing.Tracer()
	}
	if c.nonce == nil {
		c.nonce = uuid.NewString
	}

	c.base, c.baseErr = parseBaseURL(opts.BaseURL)
	if c.baseErr == nil {
		domains := opts.RedirectDomains
		if domains == nil {
			domains = DefaultRedirectDomains
		}
		c.redirects = newRedirectPolicy(c.base, domains)
	}

	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	if hc.Timeout <= 0 {
		hc.Timeout = c.timeout
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	c.http = &hc
	return c
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("backend base URL not configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("backend base URL scheme %q not supported", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("backend base URL has no host")
	}
	return u, nil
}

// Configured reports whether the client has a usable base URL and signing secret.
func (c *Client) Configured() bool {
	return c != nil && c.baseErr == nil && c.signer.Configured()
}

// Call signs and dispatches one backend action. The response is never nil; on failure the
// error is an *errors.AppError carrying the same code as Response.Error.
func (c *Client) Call(ctx context.Context, call ports.BackendCall) (*ports.BackendResponse, error) {
	ctx, corrID := correlation.Ensure(ctx)
	// Client aborts must not cancel work the backend may already be doing.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "backend.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("portal.backend.action", call.Action),
			attribute.String("portal.correlation_id", corrID),
		),
	)
	defer span.End()

	start := time.Now()
	resp, hops, err := c.call(ctx, corrID, call)
	duration := time.Since(start)

	outcome := outcomeOK
	if resp.Error != nil {
		outcome = resp.Error.Code
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(
		attribute.String("portal.backend.outcome", outcome),
		attribute.Int("portal.backend.redirects", hops),
	)
	c.metrics.ObserveBackendCall(metrics.BackendCallMetric{
		Action:   call.Action,
		Outcome:  outcome,
		Duration: duration,
		Err:      err,
	})

	attrs := []any{
		"action", call.Action,
		"correlation_id", corrID,
		"outcome", outcome,
		"redirects", hops,
		"duration_ms", duration.Milliseconds(),
	}
	if err != nil {
		if cause := errors.Unwrap(err); cause != nil {
			attrs = append(attrs, "error", cause.Error())
		}
		c.logger.WarnContext(ctx, "backend call failed", attrs...)
	} else {
		c.logger.DebugContext(ctx, "backend call", attrs...)
	}
	return resp, err
}

func (c *Client) call(ctx context.Context, corrID string, call ports.BackendCall) (*ports.BackendResponse, int, error) {
	if c.baseErr != nil {
		return c.failure(corrID, apperrors.Wrap(c.baseErr, apperrors.ErrCodeConfig, msgNotConfigured), 0)
	}
	if !c.signer.Configured() {
		return c.failure(corrID, apperrors.Wrap(signing.ErrMissingSecret, apperrors.ErrCodeConfig, msgNotConfigured), 0)
	}

	body, err := c.buildEnvelope(corrID, call)
	if err != nil {
		return c.failure(corrID, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Request payload could not be encoded"), 0)
	}

	httpResp, hops, err := c.post(ctx, corrID, body)
	if err != nil {
		return c.failure(corrID, apperrors.Wrap(err, apperrors.ErrCodeServer, msgUnavailable), hops)
	}
	defer httpResp.Body.Close()

	resp, appErr := c.normalize(corrID, httpResp)
	if appErr != nil {
		return c.failure(corrID, appErr, hops)
	}
	return resp, hops, nil
}

func (c *Client) buildEnvelope(corrID string, call ports.BackendCall) ([]byte, error) {
	payload, err := signing.CanonicalPayload(call.Payload)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Action:        call.Action,
		Payload:       payload,
		Timestamp:     c.clock.Now().UnixMilli(),
		Nonce:         c.nonce(),
		AuthToken:     call.AuthToken,
		CorrelationID: corrID,
	}
	sig, err := c.signer.Sign(env.SignInput())
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	env.Signature = sig
	return json.Marshal(env)
}

// post sends body to the base URL, re-sending the same method and body to each allowed
// redirect target.
func (c *Client) post(ctx context.Context, corrID string, body []byte) (*http.Response, int, error) {
	target := c.base
	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
		if err != nil {
			return nil, hops, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(correlation.Header, corrID)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, hops, fmt.Errorf("backend request: %w", err)
		}
		if !isRedirect(resp.StatusCode) {
			return resp, hops, nil
		}

		location := resp.Header.Get("Location")
		drainAndClose(resp.Body)
		if hops >= c.maxRedirects {
			return nil, hops, fmt.Errorf("%w (%d)", errTooManyRedirects, c.maxRedirects)
		}
		next, err := c.redirects.resolve(target, location)
		if err != nil {
			return nil, hops, err
		}
		target = next
	}
}

func (c *Client) normalize(corrID string, httpResp *http.Response) (*ports.BackendResponse, *apperrors.AppError) {
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeServer, msgUnavailable)
	}
	if len(raw) > maxResponseBytes {
		return nil, apperrors.Wrap(errors.New("response exceeds size limit"), apperrors.ErrCodeServer, msgInvalidResponse)
	}

	var parsed rawResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.OK == nil {
		cause := fmt.Errorf("status %d: unparseable envelope", httpResp.StatusCode)
		if err != nil {
			cause = fmt.Errorf("status %d: %w", httpResp.StatusCode, err)
		}
		return nil, apperrors.Wrap(cause, apperrors.ErrCodeServer, msgInvalidResponse)
	}
	if parsed.CorrelationID != "" && parsed.CorrelationID != corrID {
		c.logger.Debug("backend answered with a different correlation id",
			"correlation_id", corrID,
			"backend_correlation_id", parsed.CorrelationID,
		)
	}

	if *parsed.OK {
		if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
			cause := fmt.Errorf("status %d with ok envelope", httpResp.StatusCode)
			return nil, apperrors.Wrap(cause, apperrors.ErrCodeServer, msgInvalidResponse)
		}
		return &ports.BackendResponse{OK: true, Data: parsed.Data, CorrelationID: corrID}, nil
	}

	backendCode, backendMsg := "", ""
	if parsed.Error != nil {
		backendCode = strings.TrimSpace(parsed.Error.Code)
		backendMsg = strings.TrimSpace(parsed.Error.Message)
	}
	code := apperrors.ErrorCode(backendCode)
	if apperrors.IsPublicCode(code) && code != apperrors.ErrCodeServer && code != apperrors.ErrCodeConfig {
		if backendMsg == "" {
			backendMsg = defaultMessage(code)
		}
		return nil, apperrors.New(code, backendMsg)
	}
	cause := fmt.Errorf("backend error %s: %s", backendCode, backendMsg)
	return nil, apperrors.Wrap(cause, apperrors.ErrCodeServer, msgRequestFailed)
}

func defaultMessage(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeValidation:
		return "Invalid request"
	case apperrors.ErrCodeAuthFailed:
		return apperrors.AuthFailed().Message
	case apperrors.ErrCodeUnauthorized:
		return "Authentication required"
	case apperrors.ErrCodeForbidden:
		return "Permission denied"
	default:
		return msgRequestFailed
	}
}

// failure converts appErr into the normalized failed response. Causes become Detail in dev mode only.
func (c *Client) failure(corrID string, appErr *apperrors.AppError, hops int) (*ports.BackendResponse, int, error) {
	if c.dev && appErr.Cause != nil && appErr.Detail == "" {
		appErr = appErr.WithDetail(appErr.Cause.Error())
	}
	return &ports.BackendResponse{
		OK: false,
		Error: &ports.BackendError{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Detail:  appErr.Detail,
		},
		CorrelationID: corrID,
	}, hops, appErr
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
