package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "ourpainthub"

var ErrInvalidToken = errors.New("invalid bearer token")

// TokenClaims ties a bearer token to a server-side session, so logging out
// revokes the token as well as the cookie.
type TokenClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenCodec issues and parses HS256 bearer tokens for non-browser clients.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewTokenCodec(secret []byte) TokenCodec {
	return TokenCodec{secret: append([]byte(nil), secret...), now: time.Now}
}

func (c TokenCodec) Enabled() bool { return len(c.secret) > 0 }

func (c TokenCodec) Issue(sessionID, userID string, expiresAt time.Time) (string, error) {
	if !c.Enabled() {
		return "", errors.New("token secret not configured")
	}
	now := c.now()
	claims := TokenClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c TokenCodec) Parse(raw string) (TokenClaims, error) {
	if !c.Enabled() || raw == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	var claims TokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	return claims, nil
}
