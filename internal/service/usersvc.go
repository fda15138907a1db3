package service

import (
	"context"
	"strings"

	"ourpainthub/internal/domain"
)

type UserDirectoryStore interface {
	ListUsers(ctx context.Context, search, excludeUserID string, limit int) ([]domain.UserSummary, error)
}

type UsersService struct {
	Store UserDirectoryStore
}

// List returns active users other than the caller, optionally filtered by a
// case-insensitive email substring.
func (s *UsersService) List(ctx context.Context, callerID, search string, limit int) ([]domain.UserSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	search = strings.TrimSpace(search)
	if len(search) > 254 {
		return nil, domain.NewValidationError(map[string]string{"search": "too long"})
	}
	out, err := s.Store.ListUsers(ctx, search, callerID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.UserSummary{}
	}
	return out, nil
}
