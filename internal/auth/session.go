package auth

import (
	"net/http"
	"time"
)

// cookieName is the AuthCookie-purpose token's delivery cookie, the
// stateless counterpart to the teacher's server-side session cookie.
const cookieName = "polaris_auth"

// SetAuthCookie attaches token (an AuthCookie-purpose token) to the
// response. Unlike a server-side session, nothing is stored: the token
// itself is the credential, verified fresh on every request.
func SetAuthCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// ClearAuthCookie removes the auth cookie.
func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// TokenFromRequest extracts a bearer token from the Authorization
// header if present, falling back to the auth cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:], true
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value, true
	}
	return "", false
}
