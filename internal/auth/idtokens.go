package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"

	"ourpainthub/internal/domain"
)

var ErrProviderDisabled = errors.New("identity provider not configured")

type ExternalIdentity struct {
	Provider domain.ExternalProvider
	Subject  string
	Email    string
}

// IDTokenVerifier checks third-party sign-in tokens. An empty audience turns
// the matching provider off.
type IDTokenVerifier struct {
	GoogleClientID string
	AppleServiceID string
}

func (v IDTokenVerifier) Verify(ctx context.Context, provider domain.ExternalProvider, token string) (ExternalIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ExternalIdentity{}, errors.New("missing id token")
	}
	switch provider {
	case domain.ProviderGoogle:
		return verifyGoogle(ctx, token, v.GoogleClientID)
	case domain.ProviderApple:
		return verifyApple(token, v.AppleServiceID)
	default:
		return ExternalIdentity{}, fmt.Errorf("unknown provider %q", provider)
	}
}

func verifyGoogle(ctx context.Context, token, aud string) (ExternalIdentity, error) {
	if aud == "" {
		return ExternalIdentity{}, ErrProviderDisabled
	}
	payload, err := idtoken.Validate(ctx, token, aud)
	if err != nil {
		return ExternalIdentity{}, err
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return ExternalIdentity{}, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	email, _ := payload.Claims["email"].(string)
	return ExternalIdentity{
		Provider: domain.ProviderGoogle,
		Subject:  payload.Subject,
		Email:    NormalizeEmail(email),
	}, nil
}

func verifyApple(token, aud string) (ExternalIdentity, error) {
	if aud == "" {
		return ExternalIdentity{}, ErrProviderDisabled
	}
	idToken, err := validator.NewClient().VerifyIdToken(aud, token)
	if err != nil {
		return ExternalIdentity{}, err
	}
	if idToken.Iss != "https://appleid.apple.com" {
		return ExternalIdentity{}, fmt.Errorf("unexpected issuer: %s", idToken.Iss)
	}
	return ExternalIdentity{
		Provider: domain.ProviderApple,
		Subject:  idToken.Sub,
		Email:    NormalizeEmail(idToken.Email),
	}, nil
}
