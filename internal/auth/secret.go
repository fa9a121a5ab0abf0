package auth

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadOrGenerateSecret reads the process-wide auth_secret blob from
// path, creating and persisting a fresh one if it doesn't exist yet.
// Losing this file invalidates every outstanding token, by design: it
// is the only thing a token's integrity depends on.
func LoadOrGenerateSecret(path string) (Secret, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != len(Secret{}) {
			return Secret{}, fmt.Errorf("auth_secret at %s has unexpected length %d", path, len(data))
		}
		var s Secret
		copy(s[:], data)
		return s, nil
	}
	if !os.IsNotExist(err) {
		return Secret{}, fmt.Errorf("reading auth_secret: %w", err)
	}

	secret, err := GenerateSecret()
	if err != nil {
		return Secret{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Secret{}, fmt.Errorf("creating auth_secret directory: %w", err)
	}
	if err := os.WriteFile(path, secret[:], 0600); err != nil {
		return Secret{}, fmt.Errorf("writing auth_secret: %w", err)
	}
	return secret, nil
}
