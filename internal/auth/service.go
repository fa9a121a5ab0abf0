package auth

import (
	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// UserStore is the minimal persistence interface the auth core needs;
// internal/store's SQLite-backed store implements it.
type UserStore interface {
	GetUser(name string) (*polaris.User, error)
	PutUser(u *polaris.User) error
}

// Service ties together password verification, token issuance, and the
// admin-flag lookup every privileged operation needs.
type Service struct {
	secret Secret
	users  UserStore
}

// NewService creates a Service bound to a persisted auth_secret and user
// store.
func NewService(secret Secret, users UserStore) *Service {
	return &Service{secret: secret, users: users}
}

// Login verifies a username/password pair and, on success, issues a
// Login-purpose token.
func (s *Service) Login(username, password string) (string, error) {
	user, err := s.users.GetUser(username)
	if err != nil {
		return "", perr.NewUnauthorized("invalid credentials")
	}
	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return "", perr.NewUnauthorized("invalid credentials")
	}
	return IssueToken(s.secret, username, polaris.PurposeLogin)
}

// Authorize verifies token as a Login or AuthCookie credential and
// returns the authenticated user. Missing or invalid tokens yield
// Unauthorized, matching 4.6.
func (s *Service) Authorize(token string) (*polaris.User, error) {
	payload, err := VerifyToken(s.secret, token, "")
	if err != nil {
		return nil, err
	}
	if payload.Purpose != polaris.PurposeLogin && payload.Purpose != polaris.PurposeAuthCookie {
		return nil, perr.NewUnauthorized("token purpose mismatch")
	}
	user, err := s.users.GetUser(payload.Subject)
	if err != nil {
		return nil, perr.NewUnauthorized("unknown subject")
	}
	return user, nil
}

// RequireAdmin enforces that user has the admin flag, for admin-only
// operations; a non-admin caller gets Forbidden per 4.6.
func RequireAdmin(user *polaris.User) error {
	if !user.Admin {
		return perr.NewForbidden("admin privileges required")
	}
	return nil
}

// IssueLastFMLinkToken issues a short-lived token for the last.fm
// account-linking handshake (SUPPLEMENTED FEATURES).
func (s *Service) IssueLastFMLinkToken(username string) (string, error) {
	return IssueToken(s.secret, username, polaris.PurposeLastFMLink)
}

// VerifyLastFMLinkToken checks a last.fm link token and returns the
// subject it was issued for.
func (s *Service) VerifyLastFMLinkToken(token string) (string, error) {
	payload, err := VerifyToken(s.secret, token, polaris.PurposeLastFMLink)
	if err != nil {
		return "", err
	}
	return payload.Subject, nil
}

// IssueAuthCookieToken issues a non-expiring cookie-delivered token,
// distinct in purpose from the Authorization-header Login token but
// equally accepted by Authorize.
func (s *Service) IssueAuthCookieToken(username string) (string, error) {
	return IssueToken(s.secret, username, polaris.PurposeAuthCookie)
}

// SetPassword hashes password and persists it on the named user.
func (s *Service) SetPassword(username, password string) error {
	user, err := s.users.GetUser(username)
	if err != nil {
		return perr.NewNotFound("user not found")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return perr.WrapInternal("hashing password", err)
	}
	user.PasswordHash = hash
	return s.users.PutUser(user)
}
