// Package signing provides HMAC-SHA256 request signing and verification for backend calls.
// The BFF signs every outbound call; the backend recomputes the signature over the same
// canonical bytes and rejects stale timestamps.
package signing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrMissingSecret is returned when the signer has no key.
	ErrMissingSecret = errors.New("signing secret not configured")
	// ErrSignatureMismatch is returned when a signature does not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrStaleTimestamp is returned when a timestamp falls outside the skew window.
	ErrStaleTimestamp = errors.New("timestamp outside allowed skew")
)

// SignInput is the set of fields covered by a signature.
type SignInput struct {
	Timestamp int64 // epoch milliseconds
	Nonce     string
	Action    string
	Payload   any
}

// Signer creates and verifies HMAC-SHA256 signatures.
type Signer struct {
	key []byte
}

// NewSigner creates a signer with the given shared secret.
func NewSigner(key []byte) *Signer {
	return &Signer{key: append([]byte(nil), key...)}
}

// Configured reports whether the signer has a key.
func (s *Signer) Configured() bool {
	return s != nil && len(s.key) > 0
}

// Sign computes hex(HMAC-SHA256(timestamp|nonce|action|canonical(payload))).
func (s *Signer) Sign(in SignInput) (string, error) {
	if !s.Configured() {
		return "", ErrMissingSecret
	}
	canonical, err := Canonical(in)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a signature matches the input.
func (s *Signer) Verify(in SignInput, signature string) error {
	expected, err := s.Sign(in)
	if err != nil {
		return fmt.Errorf("compute expected: %w", err)
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", errors.Join(ErrSignatureMismatch, err))
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return fmt.Errorf("decode expected: %w", err)
	}
	if !hmac.Equal(sigBytes, expectedBytes) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyInput groups a signed request with the receiver's clock and skew window.
type VerifyInput struct {
	Request   SignInput
	Signature string
	Now       time.Time
	Skew      time.Duration
}

// VerifyFresh verifies the signature and rejects timestamps further than Skew from Now.
func (s *Signer) VerifyFresh(in VerifyInput) error {
	if err := s.Verify(in.Request, in.Signature); err != nil {
		return err
	}
	sent := time.UnixMilli(in.Request.Timestamp)
	drift := in.Now.Sub(sent)
	if drift < 0 {
		drift = -drift
	}
	if drift > in.Skew {
		return fmt.Errorf("%w: drift %s", ErrStaleTimestamp, drift.Round(time.Second))
	}
	return nil
}

// Canonical returns the exact bytes that are signed.
func Canonical(in SignInput) ([]byte, error) {
	payload, err := CanonicalPayload(in.Payload)
	if err != nil {
		return nil, err
	}
	ts := strconv.FormatInt(in.Timestamp, 10)
	canonical := make([]byte, 0, len(ts)+len(in.Nonce)+len(in.Action)+len(payload)+3)
	canonical = append(canonical, ts...)
	canonical = append(canonical, '|')
	canonical = append(canonical, in.Nonce...)
	canonical = append(canonical, '|')
	canonical = append(canonical, in.Action...)
	canonical = append(canonical, '|')
	canonical = append(canonical, payload...)
	return canonical, nil
}

// CanonicalPayload serializes v as compact JSON with sorted object keys, verbatim numbers
// and no HTML escaping. A nil payload serializes as {}.
// Structs, maps and raw JSON holding the same data produce identical bytes.
func CanonicalPayload(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}

	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	if generic == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
