package httpapi

import (
	"net/http"
	"strings"
	"time"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

type sessionResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	IsAdmin  bool   `json:"is_admin"`
	Token    string `json:"token,omitempty"`
}

// startSession sets the session cookie and answers with the user and a bearer
// token bound to the same session.
func (a *api) startSession(w http.ResponseWriter, status int, res service.LoginResult) {
	auth.SetSessionCookie(w, a.cookieCodec.EncodeSessionID(res.SessionID), a.sessionTTL, a.cookieSecure)

	resp := sessionResponse{
		ID:       res.User.ID,
		Email:    res.User.Email,
		Nickname: res.User.Nickname,
		IsAdmin:  res.IsAdmin,
	}
	if a.tokens.Enabled() {
		token, err := a.tokens.Issue(res.SessionID, res.User.ID, res.ExpiresAt)
		if err != nil {
			a.logger.Error("issue bearer token failed", "err", err, "user_id", res.User.ID)
		} else {
			resp.Token = token
		}
	}
	WriteJSON(w, status, resp)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	if ok, retry := a.loginLimiter.Allow("ip:"+clientIP(r), time.Now()); !ok {
		writeRateLimited(w, retry)
		return
	}

	res, err := a.authSvc.Register(r.Context(), req.Email, req.Password, req.Name, clientIP(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	a.startSession(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "required"
	}
	if req.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	now := time.Now()
	ip := clientIP(r)
	if ok, retry := a.loginLimiter.Allow("ip:"+ip, now); !ok {
		writeRateLimited(w, retry)
		return
	}
	if ok, retry := a.loginLimiter.Allow("login:"+email, now); !ok {
		writeRateLimited(w, retry)
		return
	}

	res, err := a.authSvc.Login(r.Context(), email, req.Password, ip, r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	a.startSession(w, http.StatusOK, res)
}

type idTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (a *api) handleLoginGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleLoginProvider(w, r, domain.ProviderGoogle)
}

func (a *api) handleLoginApple(w http.ResponseWriter, r *http.Request) {
	a.handleLoginProvider(w, r, domain.ProviderApple)
}

func (a *api) handleLoginProvider(w http.ResponseWriter, r *http.Request, provider domain.ExternalProvider) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id_token": "required"}))
		return
	}

	ip := clientIP(r)
	if ok, retry := a.loginLimiter.Allow("ip:"+ip, time.Now()); !ok {
		writeRateLimited(w, retry)
		return
	}

	res, err := a.authSvc.LoginWithProvider(r.Context(), provider, req.IDToken, ip, r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	a.startSession(w, http.StatusOK, res)
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sessID); err != nil {
		a.logger.Warn("logout: revoke session failed", "err", err)
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

type roleResponse struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

func (a *api) handleUserRole(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	resp := roleResponse{UserID: u.ID, Role: "user"}
	if a.authSvc.IsAdmin(u) {
		resp.Role = "admin"
		resp.IsAdmin = true
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, resp)
}
