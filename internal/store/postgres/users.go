package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ourpainthub/internal/domain"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

// CreateUser inserts the account and its empty profile together.
func (s *UsersStore) CreateUser(ctx context.Context, email, nickname, passwordHash string, isAdmin bool) (domain.User, error) {
	const insertUser = `
		WITH u AS (
			INSERT INTO users (email, nickname, password_hash, is_admin)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT ` + userColumns + ` FROM u
	`
	const insertProfile = `INSERT INTO profiles (user_id) VALUES ($1)`

	var u domain.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, insertUser, email, nickname, nullIfEmpty(passwordHash), isAdmin))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertProfile, u.ID)
		return err
	})
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if isMissing(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + `, u.password_hash FROM users u WHERE u.email = $1`
	var hash pgtype.Text
	u, err := scanUser(s.pool.QueryRow(ctx, q, email), &hash)
	if err != nil {
		if isMissing(err) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return domain.UserWithPassword{User: u, PasswordHash: textOrEmpty(hash)}, nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, userID, when)
	if err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, q, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUsers is the user directory: active accounts other than the caller,
// optionally filtered by an email substring.
func (s *UsersStore) ListUsers(ctx context.Context, search, excludeUserID string, limit int) ([]domain.UserSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	const q = `
		SELECT id, email, nickname
		FROM users
		WHERE status = 'active'
		  AND id <> $1
		  AND ($2::text = '' OR strpos(lower(email), lower($2)) > 0)
		ORDER BY email ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, q, excludeUserID, search, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]domain.UserSummary, error) {
	out := []domain.UserSummary{}
	for rows.Next() {
		var idUUID pgtype.UUID
		var sum domain.UserSummary
		if err := rows.Scan(&idUUID, &sum.Email, &sum.Nickname); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		sum.ID = uuidOrEmpty(idUUID)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user summaries: %w", err)
	}
	return out, nil
}

func mapUserWriteError(err error) error {
	code, constraint := pgCode(err)
	if code == codeUniqueViolation {
		switch constraint {
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", constraint, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
