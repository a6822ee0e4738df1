package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JonMunkholm/stockdash/internal/credentials"
	"github.com/JonMunkholm/stockdash/internal/logging"
	mw "github.com/JonMunkholm/stockdash/internal/web/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil || s.deps.Directory == nil {
		respondErrorStatus(w, r, badRequest("authentication is disabled"), http.StatusNotFound)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		respondBadRequest(w, r, "invalid JSON body")
		return
	}

	cred, err := s.deps.Directory.Authenticate(req.Email, req.Password)
	if err != nil {
		logging.FromContext(r.Context()).Warn("login failed", "email", req.Email, "ip", r.RemoteAddr)
		s.respondError(w, r, credentials.ErrInvalidCredentials)
		return
	}

	token, err := s.deps.Tokens.Issue(cred)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	expires := s.now().Add(s.deps.Tokens.TTL())

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	logging.FromContext(r.Context()).Info("login", "email", cred.Email)
	writeJSON(w, r, sessionResponse{
		Email:     cred.Email,
		Name:      cred.Name(),
		Roles:     cred.Roles,
		Token:     token,
		ExpiresAt: expires,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	cred, ok := mw.CredentialFromContext(r.Context())
	if !ok {
		writeJSON(w, r, sessionResponse{Email: "anonymous", Roles: []string{}})
		return
	}
	writeJSON(w, r, sessionResponse{Email: cred.Email, Name: cred.Name(), Roles: cred.Roles})
}
