package service

import (
	"context"
	"errors"
	"testing"

	"ourpainthub/internal/domain"
)

type stubBootstrapStore struct {
	t          *testing.T
	createFn   func(ctx context.Context, email, nickname, passwordHash string, isAdmin bool) (domain.User, error)
	getFn      func(ctx context.Context, email string) (domain.UserWithPassword, error)
	setAdminFn func(ctx context.Context, userID string, isAdmin bool) (domain.User, error)
}

func (s *stubBootstrapStore) CreateUser(ctx context.Context, email, nickname, passwordHash string, isAdmin bool) (domain.User, error) {
	if s.createFn == nil {
		s.t.Fatalf("CreateUser called unexpectedly")
		return domain.User{}, nil
	}
	return s.createFn(ctx, email, nickname, passwordHash, isAdmin)
}

func (s *stubBootstrapStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	return s.getFn(ctx, email)
}

func (s *stubBootstrapStore) SetAdmin(ctx context.Context, userID string, isAdmin bool) (domain.User, error) {
	if s.setAdminFn == nil {
		s.t.Fatalf("SetAdmin called unexpectedly")
		return domain.User{}, nil
	}
	return s.setAdminFn(ctx, userID, isAdmin)
}

func TestEnsureAdminCreatesMissingUser(t *testing.T) {
	var created bool
	store := &stubBootstrapStore{
		t: t,
		getFn: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		createFn: func(_ context.Context, email, nickname, hash string, isAdmin bool) (domain.User, error) {
			created = true
			if email != "root@example.com" || !isAdmin || hash == "" || nickname != "root" {
				t.Fatalf("unexpected create: %s %s admin=%v", email, nickname, isAdmin)
			}
			return domain.User{ID: "u1", Email: email, IsAdmin: true}, nil
		},
	}

	u, err := EnsureAdmin(context.Background(), store, nil, " Root@Example.com ", "long-enough-password")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !created || !u.IsAdmin {
		t.Fatalf("expected admin to be created")
	}
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	store := &stubBootstrapStore{
		t: t,
		getFn: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "u1", Email: "root@example.com"}}, nil
		},
		setAdminFn: func(_ context.Context, id string, isAdmin bool) (domain.User, error) {
			if id != "u1" || !isAdmin {
				t.Fatalf("unexpected promote: %s %v", id, isAdmin)
			}
			return domain.User{ID: id, IsAdmin: true}, nil
		},
	}

	if _, err := EnsureAdmin(context.Background(), store, nil, "root@example.com", ""); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
}

func TestEnsureAdminRejectsShortPassword(t *testing.T) {
	store := &stubBootstrapStore{
		t: t,
		getFn: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}

	_, err := EnsureAdmin(context.Background(), store, nil, "root@example.com", "short")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
