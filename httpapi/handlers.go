package httpapi

import (
	"errors"
	"net/http"

	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/middleware"
	"github.com/mentorloop/authcore/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type confirmRequest struct {
	Code   string `json:"code"`
	Secret string `json:"secret"`
}

type userResponse struct {
	User *authcore.IdentitySummary `json:"user"`
}

type pendingResponse struct {
	TwoFactorRequired bool `json:"twoFactorRequired"`
}

type twoFactorStateResponse struct {
	TwoFactorEnabled bool `json:"twoFactorEnabled"`
}

type logoutResponse struct {
	LoggedOut bool `json:"loggedOut"`
}

type healthResponse struct {
	Status string `json:"status"`
	Redis  bool   `json:"redis"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, healthResponse{Status: "ok", Redis: s.engine.RedisEnabled()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r = withRequestContext(r)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if res.TwoFactorRequired {
		s.cookies.ClearSession(w)
		s.cookies.SetPending(w, res.PendingToken)
		writeData(w, http.StatusOK, pendingResponse{TwoFactorRequired: true})
		return
	}

	s.cookies.Promote(w, res.SessionToken)
	writeData(w, http.StatusOK, userResponse{User: res.User})
}

func (s *Server) handleVerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	r = withRequestContext(r)

	pending, ok := session.PendingToken(r)
	if !ok {
		s.writeError(w, r, authcore.ErrSessionExpired)
		return
	}

	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.ValidateSecondFactor(r.Context(), pending, req.Code)
	if err != nil {
		if errors.Is(err, authcore.ErrSessionExpired) {
			s.cookies.ClearPending(w)
		}
		s.writeError(w, r, err)
		return
	}

	s.cookies.Promote(w, res.SessionToken)
	writeData(w, http.StatusOK, userResponse{User: res.User})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authcore.ErrInvalidToken)
		return
	}

	user, err := s.engine.Identity(r.Context(), p.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, userResponse{User: user})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	r = withRequestContext(r)
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authcore.ErrInvalidToken)
		return
	}

	enrollment, err := s.engine.EnrollSecondFactor(r.Context(), p.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeData(w, http.StatusOK, enrollment)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	r = withRequestContext(r)
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authcore.ErrInvalidToken)
		return
	}

	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ConfirmSecondFactor(r.Context(), p.UserID, req.Code, req.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, twoFactorStateResponse{TwoFactorEnabled: true})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	r = withRequestContext(r)
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authcore.ErrInvalidToken)
		return
	}

	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.DisableSecondFactor(r.Context(), p.UserID, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, twoFactorStateResponse{TwoFactorEnabled: false})
}

// handleLogout always succeeds and always clears both cookies.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	r = withRequestContext(r)
	token, _ := session.SessionToken(r)
	s.engine.Logout(r.Context(), token)

	s.cookies.ClearAll(w)
	writeData(w, http.StatusOK, logoutResponse{LoggedOut: true})
}
