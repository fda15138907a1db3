package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ourpainthub/internal/domain"
)

type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	const q = `
		INSERT INTO audit_log (action, actor_id, entity_type, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, q, string(e.Action), nullIfEmpty(e.ActorID), e.EntityType, e.EntityID, e.CreatedAt); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *AuditStore) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	const q = `
		SELECT id, action, actor_id, entity_type, entity_id, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e                 domain.AuditEntry
			idUUID, actorUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &e.Action, &actorUUID, &e.EntityType, &e.EntityID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = uuidOrEmpty(idUUID)
		e.ActorID = uuidOrEmpty(actorUUID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}
