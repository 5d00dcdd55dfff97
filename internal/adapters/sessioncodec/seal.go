package sessioncodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// Versioned prefix to allow future key/algorithm rotations.
	sealPrefixV1 = "v1."
	sealKeyInfo  = "portal-session/backend-token/v1"
)

// sealer encrypts the backend token carried inside the session so it is not readable
// from the cookie even though the JWT itself is only signed.
type sealer struct {
	aead cipher.AEAD
}

// newSealer derives an AES-256-GCM key from the session secret with HKDF-SHA256.
func newSealer(secret []byte) (*sealer, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: gcm}, nil
}

// Seal encrypts plaintext bound to aad and returns a versioned base64url string.
func (s *sealer) Seal(plaintext, aad string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := s.aead.Seal(nil, nonce, []byte(plaintext), []byte(aad))
	// nonce||ciphertext
	buf := make([]byte, 0, len(nonce)+len(ct))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return sealPrefixV1 + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Open reverses Seal.
func (s *sealer) Open(sealed, aad string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, sealPrefixV1) {
		return "", errors.New("unknown sealed value version")
	}
	data, err := base64.RawURLEncoding.DecodeString(sealed[len(sealPrefixV1):])
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("sealed value too short")
	}
	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(aad))
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(pt), nil
}
