package domain

import "time"

type AuditAction string

const (
	AuditAdd    AuditAction = "add"
	AuditChange AuditAction = "change"
	AuditDelete AuditAction = "delete"
)

type AuditEntry struct {
	ID         string      `json:"id"`
	Action     AuditAction `json:"action"`
	ActorID    string      `json:"actor_id"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	CreatedAt  time.Time   `json:"created_at"`
}

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

type NotificationToken struct {
	ID        string    `json:"-"`
	UserID    string    `json:"-"`
	Token     string    `json:"token"`
	Platform  Platform  `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
