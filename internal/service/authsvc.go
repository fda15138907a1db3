package service

import (
	"context"
	"errors"
	"time"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/domain"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type UsersStore interface {
	UserLookup
	CreateUser(ctx context.Context, email, nickname, passwordHash string, isAdmin bool) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

type ExternalAccountsStore interface {
	GetUserByExternalAccount(ctx context.Context, provider domain.ExternalProvider, providerID string) (domain.User, error)
	LinkExternalAccount(ctx context.Context, userID string, provider domain.ExternalProvider, providerID, email string) error
}

type IdentityVerifier interface {
	Verify(ctx context.Context, provider domain.ExternalProvider, token string) (auth.ExternalIdentity, error)
}

// LoginResult is what every successful sign-in path hands back to transport.
type LoginResult struct {
	User      domain.User
	SessionID string
	ExpiresAt time.Time
	IsAdmin   bool
}

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	External   ExternalAccountsStore
	Verifier   IdentityVerifier
	Admins     AdminPolicy
	Passwords  auth.PasswordPolicy
	Audit      AuditRecorder
	SessionTTL time.Duration
	Now        func() time.Time
}

func (s *AuthService) now() time.Time {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now()
}

func (s *AuthService) Register(ctx context.Context, email, password, nickname, ip, userAgent string) (LoginResult, error) {
	email = auth.NormalizeEmail(email)
	nickname = normalizeNickname(nickname)

	fields := map[string]string{}
	if !auth.ValidEmail(email) {
		fields["email"] = "invalid email address"
	}
	if reason := s.Passwords.Check(password); reason != "" {
		fields["password"] = reason
	}
	if nickname == "" {
		nickname = domain.DefaultNickname(email)
	} else if reason := checkNickname(nickname); reason != "" {
		fields["name"] = reason
	}
	if len(fields) > 0 {
		return LoginResult{}, domain.NewValidationError(fields)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return LoginResult{}, err
	}

	isAdmin := s.Admins.IsAdmin(domain.User{Email: email})
	u, err := s.Users.CreateUser(ctx, email, nickname, passwordHash, isAdmin)
	if err != nil {
		return LoginResult{}, err
	}
	record(ctx, s.Audit, u.ID, domain.AuditAdd, "user", u.ID)

	return s.startSession(ctx, u, ip, userAgent)
}

func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (LoginResult, error) {
	email = auth.NormalizeEmail(email)

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if u.PasswordHash == "" {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if u.Status == domain.UserStatusDisabled {
		return LoginResult{}, domain.ErrUserDisabled
	}

	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			_ = s.Users.SetPasswordHash(ctx, u.ID, hash)
		}
	}

	return s.startSession(ctx, u.User, ip, userAgent)
}

// LoginWithProvider signs in with a Google or Apple ID token. The account is
// found by provider subject, then by verified email, and created otherwise.
func (s *AuthService) LoginWithProvider(ctx context.Context, provider domain.ExternalProvider, idToken, ip, userAgent string) (LoginResult, error) {
	if s.Verifier == nil || s.External == nil {
		return LoginResult{}, domain.ErrForbidden
	}
	ident, err := s.Verifier.Verify(ctx, provider, idToken)
	if err != nil {
		if errors.Is(err, auth.ErrProviderDisabled) {
			return LoginResult{}, domain.ErrForbidden
		}
		return LoginResult{}, domain.ErrUnauthorized
	}

	u, err := s.External.GetUserByExternalAccount(ctx, provider, ident.Subject)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		u, err = s.userForIdentity(ctx, ident)
		if err != nil {
			return LoginResult{}, err
		}
		if err := s.External.LinkExternalAccount(ctx, u.ID, provider, ident.Subject, ident.Email); err != nil {
			return LoginResult{}, err
		}
	default:
		return LoginResult{}, err
	}
	if u.Status == domain.UserStatusDisabled {
		return LoginResult{}, domain.ErrUserDisabled
	}

	return s.startSession(ctx, u, ip, userAgent)
}

func (s *AuthService) userForIdentity(ctx context.Context, ident auth.ExternalIdentity) (domain.User, error) {
	if !auth.ValidEmail(ident.Email) {
		return domain.User{}, domain.NewValidationError(map[string]string{"id_token": "token carries no usable email"})
	}
	existing, err := s.Users.GetUserByEmail(ctx, ident.Email)
	if err == nil {
		return existing.User, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}
	u, err := s.Users.CreateUser(ctx, ident.Email, domain.DefaultNickname(ident.Email), "", s.Admins.IsAdmin(domain.User{Email: ident.Email}))
	if err != nil {
		return domain.User{}, err
	}
	record(ctx, s.Audit, u.ID, domain.AuditAdd, "user", u.ID)
	return u, nil
}

func (s *AuthService) startSession(ctx context.Context, u domain.User, ip, userAgent string) (LoginResult, error) {
	now := s.now()
	expiresAt := now.Add(s.SessionTTL)
	sessID, err := s.Sessions.CreateSession(ctx, u.ID, expiresAt, ip, userAgent)
	if err != nil {
		return LoginResult{}, err
	}
	_ = s.Users.SetLastLogin(ctx, u.ID, now)

	return LoginResult{
		User:      u,
		SessionID: sessID,
		ExpiresAt: expiresAt,
		IsAdmin:   s.Admins.IsAdmin(u),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if sess.RevokedAt != nil || !sess.ExpiresAt.After(s.now()) {
		return domain.User{}, domain.ErrUnauthorized
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if u.Status == domain.UserStatusDisabled {
		return domain.User{}, domain.ErrForbidden
	}

	return u, nil
}

func (s *AuthService) IsAdmin(u domain.User) bool {
	return s.Admins.IsAdmin(u)
}
