package server

import (
	"encoding/json"
	"net/http"

	"polaris/internal/auth"
	"polaris/internal/perr"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin backs POST /auth: password login -> token, per 6. It also
// sets the stateless auth cookie so browser clients can rely on cookie
// delivery instead of storing the token themselves.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, perr.NewBadRequest("malformed login request"))
		return
	}

	token, err := s.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if cookieToken, err := s.authSvc.IssueAuthCookieToken(req.Username); err == nil {
		auth.SetAuthCookie(w, cookieToken, s.secureCookies)
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
