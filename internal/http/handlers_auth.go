package http

import (
	"net/http"

	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/middleware/security"
	"spendwise/internal/services"
)

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        userSummary `json:"user"`
}

func newTokenResponse(u core.User, token string) tokenResponse {
	return tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User: userSummary{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Currency: u.Currency,
		},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, token, err := s.svc.Auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(user, token))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, token, err := s.svc.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(user, token))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Auth.Me(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleDevToken hands out a token for the configured dev account. Only
// callers on the local host are served; forwarding headers are ignored.
func (s *Server) handleDevToken(w http.ResponseWriter, r *http.Request) {
	if !security.IsLoopback(r) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
			"Dev token requested from non-local address",
			applog.FieldClientIP, security.PeerIP(r))
		writeJSON(w, http.StatusForbidden, errorBody{Detail: "Forbidden"})
		return
	}

	user, token, created, err := s.svc.Auth.EnsureUser(r.Context(), *s.opts.DevUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(),
		"Dev token issued",
		applog.FieldUserID, user.ID,
		"created", created)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}
