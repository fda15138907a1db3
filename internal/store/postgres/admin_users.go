package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ourpainthub/internal/domain"
)

func (s *UsersStore) SearchUsers(ctx context.Context, query string, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE $1::text = ''
		   OR strpos(u.id::text, lower($1)) > 0
		   OR strpos(lower(u.nickname), lower($1)) > 0
		   OR strpos(lower(u.email), lower($1)) > 0
		ORDER BY u.created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, q, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return out, nil
}

func (s *UsersStore) SetAdmin(ctx context.Context, userID string, isAdmin bool) (domain.User, error) {
	q := `
		WITH u AS (
			UPDATE users SET is_admin = $2, updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + userColumns + ` FROM u
	`
	u, err := scanUser(s.pool.QueryRow(ctx, q, userID, isAdmin))
	if err != nil {
		if isMissing(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("set admin: %w", err)
	}
	return u, nil
}

// SetStatus changes the account status. Disabling also revokes every live session.
func (s *UsersStore) SetStatus(ctx context.Context, userID string, status domain.UserStatus) (domain.User, error) {
	q := `
		WITH u AS (
			UPDATE users SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + userColumns + ` FROM u
	`
	const revoke = `
		UPDATE sessions SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`

	var u domain.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if u, err = scanUser(tx.QueryRow(ctx, q, userID, string(status))); err != nil {
			return err
		}
		if status == domain.UserStatusDisabled {
			_, err = tx.Exec(ctx, revoke, userID)
		}
		return err
	})
	if err != nil {
		if isMissing(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("set status: %w", err)
	}
	return u, nil
}
