package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ourpainthub/internal/domain"
)

type ProfilesStore struct {
	pool *pgxpool.Pool
}

func NewProfilesStore(pool *pgxpool.Pool) *ProfilesStore {
	return &ProfilesStore{pool: pool}
}

func (s *ProfilesStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	p, err := getProfile(ctx, s.pool, userID)
	if err != nil {
		if isMissing(err) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// SaveProfile writes the nickname to users and everything else to profiles.
func (s *ProfilesStore) SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	const updateUser = `UPDATE users SET nickname = $2, updated_at = now() WHERE id = $1`
	const upsertProfile = `
		INSERT INTO profiles (user_id, bio, date_of_birth, avatar, avatar_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			bio = EXCLUDED.bio,
			date_of_birth = EXCLUDED.date_of_birth,
			avatar = EXCLUDED.avatar,
			avatar_type = EXCLUDED.avatar_type,
			updated_at = EXCLUDED.updated_at
	`

	var dob pgtype.Date
	if p.DateOfBirth != nil {
		dob = pgtype.Date{Time: *p.DateOfBirth, Valid: true}
	}

	var out domain.Profile
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, updateUser, p.UserID, p.Nickname)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if _, err := tx.Exec(ctx, upsertProfile, p.UserID, p.Bio, dob, p.Avatar, nullIfEmpty(p.AvatarType)); err != nil {
			return err
		}
		out, err = getProfile(ctx, tx, p.UserID)
		return err
	})
	if err != nil {
		if isMissing(err) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return out, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProfile(ctx context.Context, db querier, userID string) (domain.Profile, error) {
	const q = `
		SELECT u.id, u.email, u.nickname,
		       coalesce(p.bio, ''), p.date_of_birth, p.avatar, p.avatar_type,
		       coalesce(p.updated_at, u.updated_at),
		       (SELECT count(*) FROM friend_edges e WHERE e.user_low = u.id OR e.user_high = u.id)
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`

	var (
		p          domain.Profile
		idUUID     pgtype.UUID
		dob        pgtype.Date
		avatarType pgtype.Text
		friends    int64
	)
	err := db.QueryRow(ctx, q, userID).Scan(
		&idUUID,
		&p.Email,
		&p.Nickname,
		&p.Bio,
		&dob,
		&p.Avatar,
		&avatarType,
		&p.UpdatedAt,
		&friends,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	p.UserID = uuidOrEmpty(idUUID)
	p.DateOfBirth = datePtr(dob)
	p.AvatarType = textOrEmpty(avatarType)
	p.FriendsCount = int(friends)
	return p, nil
}
