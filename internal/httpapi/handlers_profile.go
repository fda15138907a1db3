package httpapi

import (
	"net/http"
	"strings"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

// Avatars arrive base64 encoded inside JSON.
const maxProfileBody = 10 << 20

type profileResponse struct {
	UserID       string  `json:"user_id"`
	Email        string  `json:"email"`
	Nickname     string  `json:"nickname"`
	Bio          string  `json:"bio"`
	DateOfBirth  *string `json:"date_of_birth"`
	Avatar       string  `json:"avatar"`
	FriendsCount int     `json:"friends_count"`
	UpdatedAt    string  `json:"updated_at"`
}

func writeProfile(w http.ResponseWriter, status int, p domain.Profile) {
	resp := profileResponse{
		UserID:       p.UserID,
		Email:        p.Email,
		Nickname:     p.Nickname,
		Bio:          p.Bio,
		Avatar:       service.AvatarDataURI(p),
		FriendsCount: p.FriendsCount,
		UpdatedAt:    formatMillis(p.UpdatedAt),
	}
	if p.DateOfBirth != nil {
		dob := p.DateOfBirth.Format("2006-01-02")
		resp.DateOfBirth = &dob
	}
	WriteJSON(w, status, resp)
}

func (a *api) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	target := strings.TrimSpace(r.URL.Query().Get("user_id"))
	p, err := a.profileSvc.GetProfile(r.Context(), u.ID, target)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeProfile(w, http.StatusOK, p)
}

type updateProfileRequest struct {
	Nickname    *string `json:"nickname"`
	Bio         *string `json:"bio"`
	DateOfBirth *string `json:"date_of_birth"`
	Avatar      *string `json:"avatar"`
}

func (a *api) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req, maxProfileBody); err != nil {
		writeBadJSON(w, err)
		return
	}

	p, err := a.profileSvc.UpdateProfile(r.Context(), u.ID, service.ProfileUpdate{
		Nickname:    req.Nickname,
		Bio:         req.Bio,
		DateOfBirth: req.DateOfBirth,
		Avatar:      req.Avatar,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeProfile(w, http.StatusOK, p)
}
