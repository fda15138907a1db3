package service

import (
	"context"
	"strings"

	"ourpainthub/internal/domain"
)

type AdminUsersStore interface {
	SearchUsers(ctx context.Context, query string, limit, offset int) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	SetAdmin(ctx context.Context, userID string, isAdmin bool) (domain.User, error)
	SetStatus(ctx context.Context, userID string, status domain.UserStatus) (domain.User, error)
}

// UserPatch is an admin edit of another account; nil fields stay as they are.
type UserPatch struct {
	IsAdmin *bool
	Status  *domain.UserStatus
}

type AdminService struct {
	Users  AdminUsersStore
	Log    AuditStore
	Admins AdminPolicy
	Audit  AuditRecorder
}

func (s *AdminService) ListUsers(ctx context.Context, actor domain.User, query string, limit, offset int) ([]domain.User, error) {
	if err := s.Admins.require(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.Users.SearchUsers(ctx, strings.TrimSpace(query), limit, offset)
	if out == nil && err == nil {
		out = []domain.User{}
	}
	return out, err
}

func (s *AdminService) UpdateUser(ctx context.Context, actor domain.User, userID string, patch UserPatch) (domain.User, error) {
	if err := s.Admins.require(actor); err != nil {
		return domain.User{}, err
	}
	if patch.IsAdmin == nil && patch.Status == nil {
		return domain.User{}, domain.NewValidationError(map[string]string{"user": "no changes"})
	}
	if userID == actor.ID {
		// Admins cannot lock themselves out.
		if (patch.IsAdmin != nil && !*patch.IsAdmin) || (patch.Status != nil && *patch.Status != domain.UserStatusActive) {
			return domain.User{}, domain.NewValidationError(map[string]string{"user_id": "cannot demote or disable yourself"})
		}
	}
	if patch.Status != nil {
		switch *patch.Status {
		case domain.UserStatusActive, domain.UserStatusDisabled:
		default:
			return domain.User{}, domain.NewValidationError(map[string]string{"status": "must be active or disabled"})
		}
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if patch.IsAdmin != nil {
		if u, err = s.Users.SetAdmin(ctx, userID, *patch.IsAdmin); err != nil {
			return domain.User{}, err
		}
	}
	if patch.Status != nil {
		if u, err = s.Users.SetStatus(ctx, userID, *patch.Status); err != nil {
			return domain.User{}, err
		}
	}
	record(ctx, s.Audit, actor.ID, domain.AuditChange, "user", userID)
	return u, nil
}

func (s *AdminService) ListAudit(ctx context.Context, actor domain.User, limit int) ([]domain.AuditEntry, error) {
	if err := s.Admins.require(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := s.Log.ListAudit(ctx, limit)
	if out == nil && err == nil {
		out = []domain.AuditEntry{}
	}
	return out, err
}
