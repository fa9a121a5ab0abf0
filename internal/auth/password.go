// Package auth implements Polaris's auth core (C6): password hashing
// and verification, AEAD bearer tokens scoped by purpose, and the
// authorization check every privileged operation goes through.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 10000
	pbkdf2SaltLen    = 16
	pbkdf2KeyLen     = 32
)

// HashPassword produces the PBKDF2-HMAC-SHA256 hash string described in
// 4.6: "$pbkdf2-sha256$i=<iter>,l=<len>$<b64salt>$<b64hash>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return serializeHash(pbkdf2Iterations, pbkdf2KeyLen, salt, derived), nil
}

func serializeHash(iterations, keyLen int, salt, hash []byte) string {
	return fmt.Sprintf("$pbkdf2-sha256$i=%d,l=%d$%s$%s",
		iterations, keyLen,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

// VerifyPassword checks password against a hash string produced by
// HashPassword, in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	iterations, keyLen, salt, expected, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	actual := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func parseHash(encoded string) (iterations, keyLen int, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	// parts: ["", "pbkdf2-sha256", "i=N,l=N", "<salt>", "<hash>"]
	if len(parts) != 5 || parts[1] != "pbkdf2-sha256" {
		return 0, 0, nil, nil, fmt.Errorf("unrecognized password hash format")
	}
	for _, field := range strings.Split(parts[2], ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "i":
			iterations, err = strconv.Atoi(kv[1])
		case "l":
			keyLen, err = strconv.Atoi(kv[1])
		}
		if err != nil {
			return 0, 0, nil, nil, fmt.Errorf("invalid hash parameters: %w", err)
		}
	}
	if iterations == 0 || keyLen == 0 {
		return 0, 0, nil, nil, fmt.Errorf("missing hash parameters")
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return 0, 0, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, nil, nil, fmt.Errorf("invalid hash encoding: %w", err)
	}
	return iterations, keyLen, salt, hash, nil
}
