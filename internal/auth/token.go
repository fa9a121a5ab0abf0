package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// lastFMLinkTTL is the supplemental, time-limited scope carried over
// from the original implementation for the last.fm linking handshake
// (see SPEC_FULL.md SUPPLEMENTED FEATURES). Login and AuthCookie tokens
// never expire, per 4.6.
const lastFMLinkTTL = 600 * time.Second

// Secret is the process-wide auth_secret: 32 random bytes, generated
// once and persisted under the data directory.
type Secret [chacha20poly1305.KeySize]byte

// GenerateSecret creates a fresh random auth_secret.
func GenerateSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("generating auth secret: %w", err)
	}
	return s, nil
}

// IssueToken seals a TokenPayload under secret using XChaCha20-Poly1305
// with a random nonce, returning the opaque, URL-safe token string.
func IssueToken(secret Secret, subject string, purpose polaris.TokenPurpose) (string, error) {
	payload := polaris.TokenPayload{
		Subject:  subject,
		Purpose:  purpose,
		IssuedAt: polaris.Now().Unix(),
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding token payload: %w", err)
	}

	aead, err := chacha20poly1305.NewX(secret[:])
	if err != nil {
		return "", fmt.Errorf("constructing AEAD cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// VerifyToken opens a token sealed under secret and, if wantPurpose is
// non-empty, rejects tokens issued for any other purpose. Forged tokens,
// tokens sealed under a different secret, and expired LastFMLink tokens
// all fail with Unauthorized.
func VerifyToken(secret Secret, token string, wantPurpose polaris.TokenPurpose) (polaris.TokenPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return polaris.TokenPayload{}, perr.NewUnauthorized("malformed token")
	}

	aead, err := chacha20poly1305.NewX(secret[:])
	if err != nil {
		return polaris.TokenPayload{}, perr.WrapInternal("constructing AEAD cipher", err)
	}

	if len(raw) < aead.NonceSize() {
		return polaris.TokenPayload{}, perr.NewUnauthorized("malformed token")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return polaris.TokenPayload{}, perr.NewUnauthorized("token failed verification")
	}

	var payload polaris.TokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return polaris.TokenPayload{}, perr.NewUnauthorized("malformed token payload")
	}

	if wantPurpose != "" && payload.Purpose != wantPurpose {
		return polaris.TokenPayload{}, perr.NewUnauthorized("token purpose mismatch")
	}

	if payload.Purpose == polaris.PurposeLastFMLink {
		issued := time.Unix(payload.IssuedAt, 0)
		if polaris.Now().Sub(issued) > lastFMLinkTTL {
			return polaris.TokenPayload{}, perr.NewUnauthorized("token expired")
		}
	}

	return payload, nil
}
