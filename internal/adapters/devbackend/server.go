package devbackend

// Package devbackend provides an in-process backend for local development and tests.
// It speaks the same signed protocol as the production backend: it verifies signatures,
// rejects stale timestamps and replayed nonces, and answers auth.login / auth.logout
// from a configured user list. Every other action is echoed back for an authenticated token.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/backend"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
)

// Backend error codes, as the production backend spells them.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeStaleRequest     = "STALE_REQUEST"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeReplayedNonce    = "REPLAYED_NONCE"
)

// Actions with dedicated handling.
const (
	ActionLogin  = "auth.login"
	ActionLogout = "auth.logout"
)

const maxRequestBytes = 1 << 20

// User is an account the dev backend accepts.
type User struct {
	Username    string
	Password    string
	Role        string
	DisplayName string
	Email       string
}

// Config controls the dev backend behavior.
// Secret and at least one user are required.
type Config struct {
	Secret   []byte
	Users    []User
	Skew     time.Duration // default 5m
	TokenTTL time.Duration // default 8h
	Clock    clock.Clock
	Logger   *slog.Logger
}

type issuedToken struct {
	username  string
	expiresAt time.Time
}

// Server implements http.Handler for the backend protocol.
type Server struct {
	signer   *signing.Signer
	users    map[string]User
	skew     time.Duration
	tokenTTL time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu     sync.Mutex
	nonces map[string]time.Time
	tokens map[string]issuedToken
}

// NewServer constructs a dev backend from Config.
func NewServer(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("dev backend: Secret is required")
	}
	if len(cfg.Users) == 0 {
		return nil, errors.New("dev backend: at least one user is required")
	}
	users := make(map[string]User, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Username == "" || u.Password == "" {
			return nil, errors.New("dev backend: users need a username and password")
		}
		users[u.Username] = u
	}
	skew := cfg.Skew
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "dev_backend")
	}
	return &Server{
		signer:   signing.NewSigner(cfg.Secret),
		users:    users,
		skew:     skew,
		tokenTTL: ttl,
		clock:    clock.OrReal(cfg.Clock),
		logger:   logger,
		nonces:   make(map[string]time.Time),
		tokens:   make(map[string]issuedToken),
	}, nil
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type response struct {
	OK            bool           `json:"ok"`
	Data          any            `json:"data,omitempty"`
	Error         *responseError `json:"error,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// ServeHTTP verifies the signed envelope and dispatches the action.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.write(w, http.StatusMethodNotAllowed, fail("", CodeValidation, "method not allowed"))
		return
	}

	var env backend.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&env); err != nil || env.Action == "" {
		s.write(w, http.StatusBadRequest, fail("", CodeValidation, "malformed request"))
		return
	}

	if err := s.verify(env); err != nil {
		s.logger.Warn("rejected backend request",
			"action", env.Action,
			"correlation_id", env.CorrelationID,
			"error", err,
		)
		s.write(w, http.StatusOK, fail(env.CorrelationID, rejectionCode(err), err.Error()))
		return
	}

	s.write(w, http.StatusOK, s.dispatch(r.Context(), env))
}

func rejectionCode(err error) string {
	switch {
	case errors.Is(err, signing.ErrStaleTimestamp):
		return CodeStaleRequest
	case errors.Is(err, errReplayedNonce):
		return CodeReplayedNonce
	default:
		return CodeInvalidSignature
	}
}

var errReplayedNonce = errors.New("nonce already used")

func (s *Server) verify(env backend.Envelope) error {
	now := s.clock.Now()
	if err := s.signer.VerifyFresh(signing.VerifyInput{
		Request:   env.SignInput(),
		Signature: env.Signature,
		Now:       now,
		Skew:      s.skew,
	}); err != nil {
		return err
	}
	if env.Nonce == "" {
		return fmt.Errorf("%w: empty nonce", signing.ErrSignatureMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for n, exp := range s.nonces {
		if !exp.After(now) {
			delete(s.nonces, n)
		}
	}
	if _, seen := s.nonces[env.Nonce]; seen {
		return errReplayedNonce
	}
	// A nonce can only be replayed while its timestamp is inside the skew window.
	s.nonces[env.Nonce] = now.Add(2 * s.skew)
	return nil
}

func (s *Server) dispatch(_ context.Context, env backend.Envelope) response {
	switch env.Action {
	case ActionLogin:
		return s.login(env)
	case ActionLogout:
		s.mu.Lock()
		delete(s.tokens, env.AuthToken)
		s.mu.Unlock()
		return response{OK: true, CorrelationID: env.CorrelationID}
	}

	username, ok := s.authenticate(env.AuthToken)
	if !ok {
		return fail(env.CorrelationID, CodeUnauthorized, "token missing or expired")
	}
	return response{
		OK: true,
		Data: map[string]any{
			"action":  env.Action,
			"payload": env.Payload,
			"user":    username,
		},
		CorrelationID: env.CorrelationID,
	}
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(env backend.Envelope) response {
	var in loginPayload
	if err := json.Unmarshal(env.Payload, &in); err != nil || in.Username == "" || in.Password == "" {
		return fail(env.CorrelationID, CodeValidation, "username and password are required")
	}
	u, ok := s.users[in.Username]
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(in.Password)) != 1 {
		return fail(env.CorrelationID, CodeAuthFailed, "Invalid username or password")
	}

	token, err := randomString(43)
	if err != nil {
		return fail(env.CorrelationID, "INTERNAL", "token generation failed")
	}
	s.mu.Lock()
	s.tokens[token] = issuedToken{username: u.Username, expiresAt: s.clock.Now().Add(s.tokenTTL)}
	s.mu.Unlock()

	return response{
		OK: true,
		Data: map[string]any{
			"token": token,
			"user": map[string]string{
				"username":    u.Username,
				"role":        u.Role,
				"displayName": u.DisplayName,
				"email":       u.Email,
			},
		},
		CorrelationID: env.CorrelationID,
	}
}

func (s *Server) authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	if !issued.expiresAt.After(s.clock.Now()) {
		delete(s.tokens, token)
		return "", false
	}
	return issued.username, true
}

// ExpireTokens drops every issued token, as if the backend had restarted.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]issuedToken)
}

func fail(corrID, code, msg string) response {
	return response{OK: false, Error: &responseError{Code: code, Message: msg}, CorrelationID: corrID}
}

func (s *Server) write(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode dev backend response", "error", err)
	}
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	return s[:n], nil
}
