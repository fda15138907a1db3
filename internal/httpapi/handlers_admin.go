package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

type adminUserResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Nickname    string            `json:"nickname"`
	Status      domain.UserStatus `json:"status"`
	IsAdmin     bool              `json:"is_admin"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
	LastLoginAt *string           `json:"last_login_at,omitempty"`
}

func adminUser(u domain.User, admins service.AdminPolicy) adminUserResponse {
	return adminUserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Nickname:    u.Nickname,
		Status:      u.Status,
		IsAdmin:     admins.IsAdmin(u),
		CreatedAt:   formatMillis(u.CreatedAt),
		UpdatedAt:   formatMillis(u.UpdatedAt),
		LastLoginAt: formatMillisPtr(u.LastLoginAt),
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func (a *api) handleAdminUsersList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	users, err := a.adminSvc.ListUsers(r.Context(), u, r.URL.Query().Get("q"), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]adminUserResponse, 0, len(users))
	for _, usr := range users {
		out = append(out, adminUser(usr, a.adminSvc.Admins))
	}
	WriteJSON(w, http.StatusOK, out)
}

type adminUserPatchRequest struct {
	IsAdmin *bool   `json:"is_admin"`
	Status  *string `json:"status"`
}

func (a *api) handleAdminUserUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req adminUserPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}
	patch := service.UserPatch{IsAdmin: req.IsAdmin}
	if req.Status != nil {
		st := domain.UserStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		patch.Status = &st
	}

	updated, err := a.adminSvc.UpdateUser(r.Context(), u, id, patch)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, adminUser(updated, a.adminSvc.Admins))
}

type auditEntryResponse struct {
	ID         string             `json:"id"`
	Action     domain.AuditAction `json:"action"`
	ActorID    string             `json:"actor_id"`
	EntityType string             `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	CreatedAt  string             `json:"created_at"`
}

func (a *api) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	entries, err := a.adminSvc.ListAudit(r.Context(), u, queryInt(r, "limit", 100))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:         e.ID,
			Action:     e.Action,
			ActorID:    e.ActorID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, out)
}
