// Package store is Polaris's relational store: users, playlists, and a
// settings mirror, persisted to SQLite. It is adapted from the
// teacher's internal/database package, keeping its pragma setup and
// idempotent pragma_table_info migration style but replacing the
// tracks/download_jobs schema with the tables this domain needs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// Store wraps a *sql.DB providing the users/playlists/settings
// persistence Polaris needs beyond the in-memory collection index.
type Store struct {
	conn   *sql.DB
	logger *logrus.Logger

	getUserStmt    *sql.Stmt
	putUserStmt    *sql.Stmt
	deleteUserStmt *sql.Stmt
}

// Open opens (or creates) a SQLite database at dbPath and ensures all
// required tables and indices exist.
func Open(dbPath string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("failed to set pragma")
		}
	}

	s := &Store{conn: conn, logger: logger}

	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("store initialized")
	return s, nil
}

func (s *Store) createTables() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		name TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		lastfm_user TEXT,
		lastfm_token TEXT,
		theme TEXT
	);`

	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL REFERENCES users(name) ON DELETE CASCADE,
		name TEXT NOT NULL,
		UNIQUE(owner, name)
	);`

	playlistSongsTable := `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		virtual_path TEXT NOT NULL,
		PRIMARY KEY (playlist_id, ordinal)
	);`

	settingsTable := `
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_playlist ON playlist_songs(playlist_id);",
	}

	for _, table := range []string{usersTable, playlistsTable, playlistSongsTable, settingsTable} {
		if _, err := s.conn.Exec(table); err != nil {
			return err
		}
	}
	for _, idx := range indices {
		if _, err := s.conn.Exec(idx); err != nil {
			return err
		}
	}

	return s.runMigrations()
}

// runMigrations performs incremental, idempotent schema updates, in the
// teacher's pragma_table_info-checked ALTER TABLE style.
func (s *Store) runMigrations() error {
	var hasTheme bool
	err := s.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('users')
		WHERE name = 'theme'`).Scan(&hasTheme)
	if err != nil {
		return err
	}
	if !hasTheme {
		if _, err := s.conn.Exec("ALTER TABLE users ADD COLUMN theme TEXT"); err != nil {
			return err
		}
		s.logger.Info("added theme column to users table")
	}
	return nil
}

func (s *Store) prepareStatements() error {
	var err error
	s.getUserStmt, err = s.conn.Prepare(`
		SELECT name, password_hash, admin, lastfm_user, lastfm_token, theme
		FROM users WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("preparing get user statement: %w", err)
	}
	s.putUserStmt, err = s.conn.Prepare(`
		INSERT INTO users (name, password_hash, admin, lastfm_user, lastfm_token, theme)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			password_hash=excluded.password_hash,
			admin=excluded.admin,
			lastfm_user=excluded.lastfm_user,
			lastfm_token=excluded.lastfm_token,
			theme=excluded.theme`)
	if err != nil {
		return fmt.Errorf("preparing put user statement: %w", err)
	}
	s.deleteUserStmt, err = s.conn.Prepare(`DELETE FROM users WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("preparing delete user statement: %w", err)
	}
	return nil
}

// GetUser satisfies auth.UserStore.
func (s *Store) GetUser(name string) (*polaris.User, error) {
	var u polaris.User
	var lastFMUser, lastFMToken, theme sql.NullString
	err := s.getUserStmt.QueryRow(name).Scan(
		&u.Name, &u.PasswordHash, &u.Admin, &lastFMUser, &lastFMToken, &theme)
	if err == sql.ErrNoRows {
		return nil, perr.NewNotFound("user not found")
	}
	if err != nil {
		return nil, perr.WrapIO("querying user", err)
	}
	if lastFMUser.Valid {
		u.LastFMUser = &lastFMUser.String
	}
	if lastFMToken.Valid {
		u.LastFMToken = &lastFMToken.String
	}
	if theme.Valid {
		u.Theme = &theme.String
	}
	return &u, nil
}

// PutUser satisfies auth.UserStore, upserting by name.
func (s *Store) PutUser(u *polaris.User) error {
	_, err := s.putUserStmt.Exec(u.Name, u.PasswordHash, u.Admin, nullableStr(u.LastFMUser), nullableStr(u.LastFMToken), nullableStr(u.Theme))
	if err != nil {
		return perr.WrapIO("upserting user", err)
	}
	return nil
}

// DeleteUser removes a user and, via cascade, their playlists.
func (s *Store) DeleteUser(name string) error {
	_, err := s.deleteUserStmt.Exec(name)
	if err != nil {
		return perr.WrapIO("deleting user", err)
	}
	return nil
}

// ListUsers returns every user, ordered by name.
func (s *Store) ListUsers() ([]*polaris.User, error) {
	rows, err := s.conn.Query(`
		SELECT name, password_hash, admin, lastfm_user, lastfm_token, theme
		FROM users ORDER BY name`)
	if err != nil {
		return nil, perr.WrapIO("listing users", err)
	}
	defer rows.Close()

	var users []*polaris.User
	for rows.Next() {
		var u polaris.User
		var lastFMUser, lastFMToken, theme sql.NullString
		if err := rows.Scan(&u.Name, &u.PasswordHash, &u.Admin, &lastFMUser, &lastFMToken, &theme); err != nil {
			return nil, perr.WrapIO("scanning user row", err)
		}
		if lastFMUser.Valid {
			u.LastFMUser = &lastFMUser.String
		}
		if lastFMToken.Valid {
			u.LastFMToken = &lastFMToken.String
		}
		if theme.Valid {
			u.Theme = &theme.String
		}
		users = append(users, &u)
	}
	return users, nil
}

// CreatePlaylist inserts an empty playlist owned by owner and returns
// its id.
func (s *Store) CreatePlaylist(owner, name string) (int64, error) {
	res, err := s.conn.Exec(`INSERT INTO playlists (owner, name) VALUES (?, ?)`, owner, name)
	if err != nil {
		return 0, perr.WrapIO("creating playlist", err)
	}
	return res.LastInsertId()
}

// DeletePlaylist removes a playlist and its song ordering.
func (s *Store) DeletePlaylist(owner, name string) error {
	_, err := s.conn.Exec(`DELETE FROM playlists WHERE owner = ? AND name = ?`, owner, name)
	if err != nil {
		return perr.WrapIO("deleting playlist", err)
	}
	return nil
}

// SavePlaylistSongs replaces a playlist's song list with songs, in order.
func (s *Store) SavePlaylistSongs(playlistID int64, songs []string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return perr.WrapIO("beginning playlist update", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_songs WHERE playlist_id = ?`, playlistID); err != nil {
		return perr.WrapIO("clearing playlist songs", err)
	}
	for i, path := range songs {
		if _, err := tx.Exec(`INSERT INTO playlist_songs (playlist_id, ordinal, virtual_path) VALUES (?, ?, ?)`, playlistID, i, path); err != nil {
			return perr.WrapIO("inserting playlist song", err)
		}
	}
	return tx.Commit()
}

// ListPlaylists returns every playlist owner owns, as Playlist values
// with songs populated in order.
func (s *Store) ListPlaylists(owner string) ([]polaris.Playlist, error) {
	rows, err := s.conn.Query(`SELECT id, name FROM playlists WHERE owner = ? ORDER BY name`, owner)
	if err != nil {
		return nil, perr.WrapIO("listing playlists", err)
	}
	type row struct {
		id   int64
		name string
	}
	var ids []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return nil, perr.WrapIO("scanning playlist row", err)
		}
		ids = append(ids, r)
	}
	rows.Close()

	playlists := make([]polaris.Playlist, 0, len(ids))
	for _, r := range ids {
		songs, err := s.playlistSongs(r.id)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, polaris.Playlist{Owner: owner, Name: r.name, Songs: songs})
	}
	return playlists, nil
}

func (s *Store) playlistSongs(playlistID int64) ([]string, error) {
	rows, err := s.conn.Query(`SELECT virtual_path FROM playlist_songs WHERE playlist_id = ? ORDER BY ordinal`, playlistID)
	if err != nil {
		return nil, perr.WrapIO("listing playlist songs", err)
	}
	defer rows.Close()
	var songs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, perr.WrapIO("scanning playlist song row", err)
		}
		songs = append(songs, p)
	}
	return songs, nil
}

// PlaylistID looks up a playlist's row id by owner and name.
func (s *Store) PlaylistID(owner, name string) (int64, error) {
	var id int64
	err := s.conn.QueryRow(`SELECT id FROM playlists WHERE owner = ? AND name = ?`, owner, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, perr.NewNotFound("playlist not found")
	}
	if err != nil {
		return 0, perr.WrapIO("looking up playlist", err)
	}
	return id, nil
}

// SaveSettings persists settings as the single-row settings mirror.
// The mirror is not read back at startup: config.Manager loads its
// settings from the TOML file.
func (s *Store) SaveSettings(settings any) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return perr.WrapInternal("encoding settings", err)
	}
	_, err = s.conn.Exec(`
		INSERT INTO settings (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload=excluded.payload`, string(payload))
	if err != nil {
		return perr.WrapIO("saving settings", err)
	}
	return nil
}

// LoadSettings unmarshals the persisted settings mirror into out, if any
// was ever saved.
func (s *Store) LoadSettings(out any) (bool, error) {
	var payload string
	err := s.conn.QueryRow(`SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, perr.WrapIO("loading settings", err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, perr.WrapInternal("decoding settings", err)
	}
	return true, nil
}

// Close closes prepared statements and the underlying connection.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.getUserStmt, s.putUserStmt, s.deleteUserStmt} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				s.logger.WithError(err).Warn("failed to close prepared statement")
			}
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func nullableStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
