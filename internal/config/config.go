// Package config loads and serves Polaris's TOML configuration: mount
// points, declared users, the album art pattern, and the DDNS update
// URL. Consumers read a point-in-time Settings snapshot or subscribe to
// a change channel that fires after every successful Set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// MountDir is one [[mount_dirs]] table entry.
type MountDir struct {
	Name   string `toml:"name"`
	Source string `toml:"source"`
}

// DeclaredUser is one [[users]] table entry. At least one of
// InitialPassword or HashedPassword must be set; when both are,
// HashedPassword is used. InitialPassword is hashed when the user is
// first created at startup; the plaintext stays in Settings, so Set
// writes it back to the file unchanged.
type DeclaredUser struct {
	Name            string `toml:"name"`
	Admin           bool   `toml:"admin"`
	InitialPassword string `toml:"initial_password,omitempty"`
	HashedPassword  string `toml:"hashed_password,omitempty"`
}

// Settings is the full, versioned configuration document.
type Settings struct {
	AlbumArtPattern string         `toml:"album_art_pattern"`
	DdnsURL         string         `toml:"ddns_url"`
	MountDirs       []MountDir     `toml:"mount_dirs"`
	Users           []DeclaredUser `toml:"users"`

	IndexSleepDurationSeconds int  `toml:"index_sleep_duration_seconds"`
	AutoRescanEnabled         bool `toml:"auto_rescan_enabled"`
}

// DefaultSettings returns the configuration used when no file exists yet.
func DefaultSettings() Settings {
	return Settings{
		AlbumArtPattern:           "Folder.(jpeg|jpg|png)",
		IndexSleepDurationSeconds: 1800,
		AutoRescanEnabled:         true,
	}
}

// Manager owns the current Settings and fans out a change notification
// after every successful mutation. Reads take a short lock or work off
// an immutable copy; after Load there is exactly one writer path (Set).
type Manager struct {
	path string

	mu       sync.RWMutex
	current  Settings
	version  uint64
	watchers []chan struct{}
}

// Load reads configPath, creating it with defaults if absent, and
// returns a Manager ready to serve Settings snapshots. It also loads a
// sibling .env file (if present) so POLARIS_CONFIG_DIR/POLARIS_DATA_DIR
// can be set in development without exporting shell variables.
func Load(configPath string) (*Manager, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))

	m := &Manager{path: configPath}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaults := DefaultSettings()
		if err := writeToFile(configPath, defaults); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		m.current = defaults
		return m, nil
	}

	settings, err := readFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	m.current = settings
	return m, nil
}

func readFromFile(path string) (Settings, error) {
	settings := DefaultSettings()
	if _, err := toml.DecodeFile(path, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return settings, nil
}

func writeToFile(path string, settings Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := "# Polaris configuration. See SPEC_FULL.md for the full field list.\n\n"
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}
	return toml.NewEncoder(file).Encode(settings)
}

func validate(s Settings) error {
	seen := map[string]bool{}
	for _, m := range s.MountDirs {
		if m.Name == "" || m.Source == "" {
			return fmt.Errorf("mount_dirs entries require both name and source")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate mount name %q", m.Name)
		}
		seen[m.Name] = true
	}
	seenUsers := map[string]bool{}
	for _, u := range s.Users {
		if u.Name == "" {
			return fmt.Errorf("users entries require a name")
		}
		if u.InitialPassword == "" && u.HashedPassword == "" {
			return fmt.Errorf("user %q needs initial_password or hashed_password", u.Name)
		}
		if seenUsers[u.Name] {
			return fmt.Errorf("duplicate user name %q", u.Name)
		}
		seenUsers[u.Name] = true
	}
	if s.AlbumArtPattern == "" {
		return fmt.Errorf("album_art_pattern cannot be empty")
	}
	return nil
}

// Current returns a copy of the current Settings and its version.
func (m *Manager) Current() (Settings, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.version
}

// Subscribe returns a channel that is closed the next time Settings
// change. Callers should re-subscribe after each notification.
func (m *Manager) Subscribe() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.watchers = append(m.watchers, ch)
	return ch
}

// Set replaces the current settings, persists them, and notifies
// subscribers. It is the only mutation path besides Load.
func (m *Manager) Set(settings Settings) error {
	if err := validate(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := writeToFile(m.path, settings); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = settings
	m.version++
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()

	for _, ch := range watchers {
		close(ch)
	}
	return nil
}

// Mounts returns the current mount table as a name->source map.
func (m *Manager) Mounts() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.current.MountDirs))
	for _, md := range m.current.MountDirs {
		out[md.Name] = md.Source
	}
	return out
}
