// Package sessioncodec encodes sessions as HS256 JWTs suitable for a cookie value.
package sessioncodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// MaxTokenBytes bounds the size of a token accepted by Decode.
// Browsers cap a cookie at roughly 4 KiB, so anything larger did not come from us.
const MaxTokenBytes = 4096

const issuer = "portal-bff"

var (
	// ErrMissingSecret is returned when no session secret is configured.
	ErrMissingSecret = errors.New("session secret not configured")
	// ErrTokenMalformed is returned for input that is not a well-formed token.
	ErrTokenMalformed = errors.New("session token malformed")
	// ErrTokenTampered is returned when the signature or sealed content does not verify.
	ErrTokenTampered = errors.New("session token signature invalid")
	// ErrTokenExpired is returned when the session expiry has passed.
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenOversized is returned when the token exceeds MaxTokenBytes.
	ErrTokenOversized = errors.New("session token too large")
)

var _ ports.SessionCodec = (*Codec)(nil)

// claims is the JWT body. Epoch-millisecond fields are authoritative; the registered
// exp/iat claims carry second precision for generic JWT tooling.
type claims struct {
	Role         string `json:"role"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	BackendToken string `json:"bt,omitempty"`
	CreatedAtMs  int64  `json:"cat"`
	ExpiresAtMs  int64  `json:"xat"`
	jwt.RegisteredClaims
}

// Options configures a Codec.
type Options struct {
	Secret []byte
	Clock  clock.Clock
}

// Codec implements ports.SessionCodec. A Codec without a secret fails closed:
// every Encode and Decode returns a CONFIG_ERROR.
type Codec struct {
	secret []byte
	seal   *sealer
	clock  clock.Clock
	parser *jwt.Parser
}

// New constructs a Codec.
func New(opts Options) *Codec {
	c := &Codec{
		secret: append([]byte(nil), opts.Secret...),
		clock:  clock.OrReal(opts.Clock),
	}
	if len(c.secret) > 0 {
		// A derivation failure leaves the codec unconfigured, so it fails closed.
		if s, err := newSealer(c.secret); err == nil {
			c.seal = s
		}
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithLeeway(time.Second),
	)
	return c
}

// Configured reports whether the codec can sign and verify.
func (c *Codec) Configured() bool {
	return c != nil && len(c.secret) > 0 && c.seal != nil
}

// Encode serializes and signs the session.
func (c *Codec) Encode(sess domainauth.Session) (string, error) {
	if !c.Configured() {
		return "", apperrors.Wrap(ErrMissingSecret, apperrors.ErrCodeConfig, "session signing unavailable")
	}
	if sess.User.Username == "" {
		return "", fmt.Errorf("encode session: username is required")
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		return "", fmt.Errorf("encode session: expiry must be after creation")
	}

	sealed, err := c.seal.Seal(sess.BackendToken, sess.ID)
	if err != nil {
		return "", fmt.Errorf("seal backend token: %w", err)
	}

	cl := claims{
		Role:         string(sess.User.Role),
		Name:         sess.User.DisplayName,
		Email:        sess.User.Email,
		BackendToken: sealed,
		CreatedAtMs:  sess.CreatedAt.UnixMilli(),
		ExpiresAtMs:  sess.ExpiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.User.Username,
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	// Decode refuses anything larger, so such a cookie would log the user straight out.
	if len(token) > MaxTokenBytes {
		return "", fmt.Errorf("encode session: %w (%d bytes)", ErrTokenOversized, len(token))
	}
	return token, nil
}

// Decode verifies token and reconstructs the session.
func (c *Codec) Decode(token string) (domainauth.Session, error) {
	if !c.Configured() {
		return domainauth.Session{}, apperrors.Wrap(ErrMissingSecret, apperrors.ErrCodeConfig, "session verification unavailable")
	}
	if token == "" {
		return domainauth.Session{}, apperrors.InvalidToken(ErrTokenMalformed)
	}
	if len(token) > MaxTokenBytes {
		return domainauth.Session{}, apperrors.InvalidToken(ErrTokenOversized)
	}

	var cl claims
	_, err := c.parser.ParseWithClaims(token, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return domainauth.Session{}, apperrors.InvalidToken(classifyParseError(err))
	}

	sess := domainauth.Session{
		ID: cl.ID,
		User: domainauth.User{
			Username:    cl.Subject,
			Role:        domainauth.Role(cl.Role),
			DisplayName: cl.Name,
			Email:       cl.Email,
		},
		CreatedAt: time.UnixMilli(cl.CreatedAtMs).UTC(),
		ExpiresAt: time.UnixMilli(cl.ExpiresAtMs).UTC(),
	}
	if sess.User.Username == "" || sess.User.Role == "" || cl.CreatedAtMs == 0 {
		return domainauth.Session{}, apperrors.InvalidToken(ErrTokenMalformed)
	}
	if !sess.Valid(c.clock.Now()) {
		return domainauth.Session{}, apperrors.InvalidToken(ErrTokenExpired)
	}

	bt, err := c.seal.Open(cl.BackendToken, cl.ID)
	if err != nil {
		return domainauth.Session{}, apperrors.InvalidToken(errors.Join(ErrTokenTampered, err))
	}
	sess.BackendToken = bt
	return sess, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenTampered
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return errors.Join(ErrTokenMalformed, err)
	}
}
