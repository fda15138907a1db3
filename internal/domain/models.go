package domain

import (
	"strings"
	"time"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type User struct {
	ID          string
	Email       string
	Nickname    string
	Status      UserStatus
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

type UserWithPassword struct {
	User
	PasswordHash string
}

// UserSummary is the public card shown in user, friend and request lists.
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Nickname: u.Nickname}
}

// Profile is the editable part of an account. It is created together with the user.
type Profile struct {
	UserID       string
	Email        string
	Nickname     string
	Bio          string
	DateOfBirth  *time.Time
	Avatar       []byte
	AvatarType   string
	FriendsCount int
	UpdatedAt    time.Time
}

type ExternalProvider string

const (
	ProviderGoogle ExternalProvider = "google"
	ProviderApple  ExternalProvider = "apple"
)

type ExternalAccount struct {
	ID         string
	UserID     string
	Provider   ExternalProvider
	ProviderID string
	Email      string
	CreatedAt  time.Time
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// DefaultNickname derives a nickname from the local part of an email address.
func DefaultNickname(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
