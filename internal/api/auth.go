package api

import (
	"net/http"
	"time"

	"github.com/nexusnav/nexusnav/internal/auth"
	"github.com/nexusnav/nexusnav/internal/wire"
)

func (s *server) session(w http.ResponseWriter, r *http.Request) {
	st, err := s.auth.Status(r.Context(), auth.TokenFrom(r))
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, wire.Session(st))
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req wire.PasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, s.log, err)
		return
	}
	on, err := s.auth.SecurityEnabled(r.Context())
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	if !on {
		respondOK(w, s.log, wire.Session{Authenticated: true})
		return
	}
	token, ttl, err := s.auth.Login(r.Context(), req.Password)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	http.SetCookie(w, auth.SessionCookieFor(token, ttl))
	respondOK(w, s.log, wire.Session{
		Authenticated:         true,
		SecurityEnabled:       true,
		SessionTimeoutMinutes: int(ttl / time.Minute),
	})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(auth.TokenFrom(r))
	http.SetCookie(w, auth.ClearCookie())
	on, err := s.auth.SecurityEnabled(r.Context())
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, wire.Session{
		SecurityEnabled:       on,
		SessionTimeoutMinutes: int(s.auth.SessionTimeout(r.Context()) / time.Minute),
	})
}

func (s *server) verifyConfig(w http.ResponseWriter, r *http.Request) {
	var req wire.PasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, s.log, err)
		return
	}
	token, err := s.auth.IssueVerifyToken(r.Context(), req.Password)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, wire.VerifyToken{
		VerifyToken:      token,
		ExpiresInSeconds: int(auth.VerifyTokenTTL / time.Second),
	})
}
