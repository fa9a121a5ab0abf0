package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

type fakeUserStore struct {
	users map[string]*polaris.User
}

func newFakeUserStore(users ...*polaris.User) *fakeUserStore {
	s := &fakeUserStore{users: map[string]*polaris.User{}}
	for _, u := range users {
		s.users[u.Name] = u
	}
	return s
}

func (s *fakeUserStore) GetUser(name string) (*polaris.User, error) {
	u, ok := s.users[name]
	if !ok {
		return nil, perr.NewNotFound("user not found: " + name)
	}
	return u, nil
}

func (s *fakeUserStore) PutUser(u *polaris.User) error {
	s.users[u.Name] = u
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash := mustHash(t, "correct horse battery staple")

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("expected matching password to verify")
	}

	ok, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("expected mismatched password to fail verification")
	}
}

func TestHashPasswordUsesFreshSaltEachCall(t *testing.T) {
	a := mustHash(t, "same password")
	b := mustHash(t, "same password")
	if a == b {
		t.Error("expected two hashes of the same password to differ by salt")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	token, err := IssueToken(secret, "alice", polaris.PurposeLogin)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	payload, err := VerifyToken(secret, token, "")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if payload.Subject != "alice" || payload.Purpose != polaris.PurposeLogin {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	secretA, _ := GenerateSecret()
	secretB, _ := GenerateSecret()

	token, err := IssueToken(secretA, "alice", polaris.PurposeLogin)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := VerifyToken(secretB, token, ""); err == nil {
		t.Error("expected a token sealed under a different secret to fail verification")
	}
}

func TestTokenRejectsPurposeMismatch(t *testing.T) {
	secret, _ := GenerateSecret()
	token, err := IssueToken(secret, "alice", polaris.PurposeLogin)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := VerifyToken(secret, token, polaris.PurposeAuthCookie); err == nil {
		t.Error("expected purpose mismatch to be rejected")
	}
}

func TestLastFMLinkTokenExpires(t *testing.T) {
	secret, _ := GenerateSecret()

	original := polaris.Now
	defer func() { polaris.Now = original }()

	now := time.Unix(1_700_000_000, 0)
	polaris.Now = func() time.Time { return now }

	token, err := IssueToken(secret, "alice", polaris.PurposeLastFMLink)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := VerifyToken(secret, token, polaris.PurposeLastFMLink); err != nil {
		t.Errorf("expected a fresh lastfm link token to verify, got %v", err)
	}

	polaris.Now = func() time.Time { return now.Add(lastFMLinkTTL + time.Second) }
	if _, err := VerifyToken(secret, token, polaris.PurposeLastFMLink); err == nil {
		t.Error("expected an expired lastfm link token to be rejected")
	}
}

func TestServiceLogin(t *testing.T) {
	secret, _ := GenerateSecret()
	hash := mustHash(t, "hunter2")
	store := newFakeUserStore(&polaris.User{Name: "alice", PasswordHash: hash})
	svc := NewService(secret, store)

	token, err := svc.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	if _, err := svc.Login("alice", "wrong"); err == nil {
		t.Error("expected wrong password to be rejected")
	}
	if _, err := svc.Login("nobody", "hunter2"); err == nil {
		t.Error("expected unknown user to be rejected")
	}
}

func TestServiceAuthorize(t *testing.T) {
	secret, _ := GenerateSecret()
	hash := mustHash(t, "hunter2")
	store := newFakeUserStore(&polaris.User{Name: "alice", PasswordHash: hash})
	svc := NewService(secret, store)

	token, err := svc.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	user, err := svc.Authorize(token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("expected alice, got %s", user.Name)
	}

	if _, err := svc.Authorize("garbage"); err == nil {
		t.Error("expected malformed token to fail authorization")
	}
}

func TestServiceAuthorizeAcceptsAuthCookieToken(t *testing.T) {
	secret, _ := GenerateSecret()
	store := newFakeUserStore(&polaris.User{Name: "alice"})
	svc := NewService(secret, store)

	token, err := svc.IssueAuthCookieToken("alice")
	if err != nil {
		t.Fatalf("IssueAuthCookieToken: %v", err)
	}

	user, err := svc.Authorize(token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("expected alice, got %s", user.Name)
	}
}

func TestServiceAuthorizeRejectsLastFMLinkToken(t *testing.T) {
	secret, _ := GenerateSecret()
	store := newFakeUserStore(&polaris.User{Name: "alice"})
	svc := NewService(secret, store)

	token, err := svc.IssueLastFMLinkToken("alice")
	if err != nil {
		t.Fatalf("IssueLastFMLinkToken: %v", err)
	}

	if _, err := svc.Authorize(token); err == nil {
		t.Error("expected a lastfm link token to be rejected as a general credential")
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(&polaris.User{Name: "alice", Admin: true}); err != nil {
		t.Errorf("expected admin user to pass, got %v", err)
	}
	if err := RequireAdmin(&polaris.User{Name: "bob", Admin: false}); err == nil {
		t.Error("expected non-admin user to be rejected")
	}
}

func TestSetAuthCookieAndTokenFromRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	SetAuthCookie(rec, "sometoken", false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	token, ok := TokenFromRequest(req)
	if !ok || token != "sometoken" {
		t.Errorf("expected cookie-delivered token, got %q (ok=%v)", token, ok)
	}
}

func TestTokenFromRequestPrefersBearerHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer headertoken")
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "cookietoken"})

	token, ok := TokenFromRequest(req)
	if !ok || token != "headertoken" {
		t.Errorf("expected bearer header to take precedence, got %q", token)
	}
}
