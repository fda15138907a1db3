package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/domain"
)

const minAdminPasswordLength = 12

type AdminBootstrapStore interface {
	CreateUser(ctx context.Context, email, nickname, passwordHash string, isAdmin bool) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	SetAdmin(ctx context.Context, userID string, isAdmin bool) (domain.User, error)
}

// EnsureAdmin creates an admin account for email, or grants admin rights to
// the existing one. The password of an existing account is left alone.
func EnsureAdmin(ctx context.Context, store AdminBootstrapStore, logger *slog.Logger, email, password string) (domain.User, error) {
	if logger == nil {
		logger = slog.Default()
	}
	email = auth.NormalizeEmail(email)
	if !auth.ValidEmail(email) {
		return domain.User{}, domain.NewValidationError(map[string]string{"email": "invalid"})
	}

	existing, err := store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			logger.Info("admin bootstrap: already admin", "email", email)
			return existing.User, nil
		}
		u, err := store.SetAdmin(ctx, existing.ID, true)
		if err != nil {
			return domain.User{}, fmt.Errorf("admin bootstrap: promote: %w", err)
		}
		logger.Info("admin bootstrap: promoted existing user", "email", email)
		return u, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, fmt.Errorf("admin bootstrap: lookup user: %w", err)
	}

	if utf8.RuneCountInString(password) < minAdminPasswordLength {
		return domain.User{}, domain.NewValidationError(map[string]string{"password": "must be at least 12 characters"})
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("admin bootstrap: hash password: %w", err)
	}
	u, err := store.CreateUser(ctx, email, domain.DefaultNickname(email), hash, true)
	if err != nil {
		return domain.User{}, fmt.Errorf("admin bootstrap: create user: %w", err)
	}
	logger.Info("admin bootstrap: created admin user", "email", email)
	return u, nil
}
