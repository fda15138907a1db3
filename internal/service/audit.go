package service

import (
	"context"
	"log/slog"
	"time"

	"ourpainthub/internal/domain"
)

type AuditStore interface {
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// AuditRecorder is what mutating services report to. Recording is best effort.
type AuditRecorder interface {
	Record(ctx context.Context, actorID string, action domain.AuditAction, entityType, entityID string)
}

type AuditLog struct {
	Store  AuditStore
	Logger *slog.Logger
	Now    func() time.Time
}

func (a *AuditLog) Record(ctx context.Context, actorID string, action domain.AuditAction, entityType, entityID string) {
	if a == nil || a.Store == nil {
		return
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}
	entry := domain.AuditEntry{
		Action:     action,
		ActorID:    actorID,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  now().UTC(),
	}
	if err := a.Store.AppendAudit(ctx, entry); err != nil {
		logger := a.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("audit: append failed", "err", err, "entity", entityType, "entity_id", entityID, "action", action)
	}
}

func record(ctx context.Context, rec AuditRecorder, actorID string, action domain.AuditAction, entityType, entityID string) {
	if rec == nil {
		return
	}
	rec.Record(ctx, actorID, action, entityType, entityID)
}

// AdminPolicy decides admin rights from the stored user row, plus a static
// allow-list of emails from configuration.
type AdminPolicy struct {
	Emails []string
}

func (p AdminPolicy) IsAdmin(u domain.User) bool {
	if u.IsAdmin {
		return true
	}
	for _, e := range p.Emails {
		if e == u.Email {
			return true
		}
	}
	return false
}

func (p AdminPolicy) require(u domain.User) error {
	if !p.IsAdmin(u) {
		return domain.ErrForbidden
	}
	return nil
}
