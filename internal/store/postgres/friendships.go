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

type FriendshipsStore struct {
	pool *pgxpool.Pool
}

func NewFriendshipsStore(pool *pgxpool.Pool) *FriendshipsStore {
	return &FriendshipsStore{pool: pool}
}

// requestColumns expects friend_requests as r and the counterparty as u.
const requestColumns = `r.id, r.from_user_id, r.to_user_id, r.status, r.created_at, r.updated_at, r.resolved_at, u.id, u.email, u.nickname`

func scanRequest(row pgx.Row) (domain.FriendRequest, error) {
	var (
		fr                   domain.FriendRequest
		idUUID, fromID, toID pgtype.UUID
		resolvedTS           pgtype.Timestamptz
		userUUID             pgtype.UUID
	)
	err := row.Scan(
		&idUUID,
		&fromID,
		&toID,
		&fr.Status,
		&fr.CreatedAt,
		&fr.UpdatedAt,
		&resolvedTS,
		&userUUID,
		&fr.User.Email,
		&fr.User.Nickname,
	)
	if err != nil {
		return domain.FriendRequest{}, err
	}
	fr.ID = uuidOrEmpty(idUUID)
	fr.FromUserID = uuidOrEmpty(fromID)
	fr.ToUserID = uuidOrEmpty(toID)
	fr.ResolvedAt = timestamptzPtr(resolvedTS)
	fr.User.ID = uuidOrEmpty(userUUID)
	return fr, nil
}

func lockPair(ctx context.Context, tx pgx.Tx, a, b string) error {
	low, high := domain.FriendPair(a, b)
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "friend:"+low+":"+high)
	return err
}

// SendRequest records fromID -> toID under a per-pair lock. A pending request
// in the opposite direction is accepted instead and the edge is created.
func (s *FriendshipsStore) SendRequest(ctx context.Context, fromID, toID string, when time.Time) (domain.FriendRequest, error) {
	const edgeExists = `SELECT EXISTS (SELECT 1 FROM friend_edges WHERE user_low = $1 AND user_high = $2)`
	const pendingExists = `
		SELECT EXISTS (
			SELECT 1 FROM friend_requests
			WHERE from_user_id = $1 AND to_user_id = $2 AND status = 'pending'
		)
	`
	const acceptReverse = `
		UPDATE friend_requests
		SET status = 'accepted', updated_at = $3, resolved_at = $3
		WHERE from_user_id = $2 AND to_user_id = $1 AND status = 'pending'
	`
	const insertRequest = `
		WITH r AS (
			INSERT INTO friend_requests (from_user_id, to_user_id, status, created_at, updated_at, resolved_at)
			VALUES ($1, $2, $3, $4, $4, $5)
			RETURNING *
		)
		SELECT ` + requestColumns + ` FROM r JOIN users u ON u.id = r.to_user_id
	`

	var fr domain.FriendRequest
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, fromID, toID); err != nil {
			return err
		}
		low, high := domain.FriendPair(fromID, toID)
		var exists bool
		if err := tx.QueryRow(ctx, edgeExists, low, high).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyFriends
		}
		if err := tx.QueryRow(ctx, pendingExists, fromID, toID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domain.ErrRequestExists
		}

		ct, err := tx.Exec(ctx, acceptReverse, fromID, toID, when)
		if err != nil {
			return err
		}
		status, resolvedAt := domain.FriendRequestPending, pgtype.Timestamptz{}
		if ct.RowsAffected() > 0 {
			status, resolvedAt = domain.FriendRequestAccepted, pgtype.Timestamptz{Time: when, Valid: true}
			if err := insertEdge(ctx, tx, fromID, toID, when); err != nil {
				return err
			}
		}
		fr, err = scanRequest(tx.QueryRow(ctx, insertRequest, fromID, toID, string(status), when, resolvedAt))
		return err
	})
	if err != nil {
		return domain.FriendRequest{}, mapFriendError("send friend request", err)
	}
	return fr, nil
}

func insertEdge(ctx context.Context, tx pgx.Tx, a, b string, when time.Time) error {
	low, high := domain.FriendPair(a, b)
	_, err := tx.Exec(ctx, `
		INSERT INTO friend_edges (user_low, user_high, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT friend_edges_pair_uq DO NOTHING
	`, low, high, when)
	return err
}

func (s *FriendshipsStore) Respond(ctx context.Context, fromID, toID string, action domain.FriendAction, when time.Time) (domain.FriendRequest, error) {
	var status domain.FriendRequestStatus
	switch action {
	case domain.FriendActionAccept:
		status = domain.FriendRequestAccepted
	case domain.FriendActionDecline:
		status = domain.FriendRequestDeclined
	default:
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"action": "must be accept or decline"})
	}

	var fr domain.FriendRequest
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, fromID, toID); err != nil {
			return err
		}
		var err error
		fr, err = resolvePending(ctx, tx, fromID, toID, status, when, "r.from_user_id")
		if err != nil {
			return err
		}
		if status == domain.FriendRequestAccepted {
			return insertEdge(ctx, tx, fromID, toID, when)
		}
		return nil
	})
	if err != nil {
		return domain.FriendRequest{}, mapFriendError("respond to friend request", err)
	}
	return fr, nil
}

func (s *FriendshipsStore) Cancel(ctx context.Context, fromID, toID string, when time.Time) (domain.FriendRequest, error) {
	var fr domain.FriendRequest
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, fromID, toID); err != nil {
			return err
		}
		var err error
		fr, err = resolvePending(ctx, tx, fromID, toID, domain.FriendRequestCancelled, when, "r.to_user_id")
		return err
	})
	if err != nil {
		return domain.FriendRequest{}, mapFriendError("cancel friend request", err)
	}
	return fr, nil
}

// resolvePending moves the pending fromID -> toID request to status. The
// counterparty column picks which side is returned as the request's User.
func resolvePending(ctx context.Context, tx pgx.Tx, fromID, toID string, status domain.FriendRequestStatus, when time.Time, counterparty string) (domain.FriendRequest, error) {
	q := `
		WITH r AS (
			UPDATE friend_requests
			SET status = $3, updated_at = $4, resolved_at = $4
			WHERE from_user_id = $1 AND to_user_id = $2 AND status = 'pending'
			RETURNING *
		)
		SELECT ` + requestColumns + ` FROM r JOIN users u ON u.id = ` + counterparty
	return scanRequest(tx.QueryRow(ctx, q, fromID, toID, string(status), when))
}

func (s *FriendshipsStore) HasPending(ctx context.Context, fromID, toID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM friend_requests
			WHERE from_user_id = $1 AND to_user_id = $2 AND status = 'pending'
		)
	`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, fromID, toID).Scan(&exists); err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("has pending request: %w", err)
	}
	return exists, nil
}

func (s *FriendshipsStore) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	low, high := domain.FriendPair(userA, userB)
	const q = `SELECT EXISTS (SELECT 1 FROM friend_edges WHERE user_low = $1 AND user_high = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, low, high).Scan(&exists); err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("are friends: %w", err)
	}
	return exists, nil
}

func (s *FriendshipsStore) RemoveFriend(ctx context.Context, userA, userB string) (bool, error) {
	low, high := domain.FriendPair(userA, userB)
	const q = `DELETE FROM friend_edges WHERE user_low = $1 AND user_high = $2`
	ct, err := s.pool.Exec(ctx, q, low, high)
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove friend: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *FriendshipsStore) ListFriends(ctx context.Context, userID, search string) ([]domain.UserSummary, error) {
	const q = `
		SELECT u.id, u.email, u.nickname
		FROM friend_edges e
		JOIN users u ON u.id = CASE
			WHEN e.user_low = $1 THEN e.user_high
			ELSE e.user_low
		END
		WHERE (e.user_low = $1 OR e.user_high = $1)
		  AND ($2::text = '' OR strpos(lower(u.email), lower($2)) > 0)
		ORDER BY u.email ASC
	`

	rows, err := s.pool.Query(ctx, q, userID, search)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return collectSummaries(rows)
}

func (s *FriendshipsStore) ListIncoming(ctx context.Context, userID string) ([]domain.FriendRequest, error) {
	q := `
		SELECT ` + requestColumns + `
		FROM friend_requests r
		JOIN users u ON u.id = r.from_user_id
		WHERE r.status = 'pending' AND r.to_user_id = $1
		ORDER BY r.updated_at DESC
	`
	return s.listRequests(ctx, "list incoming requests", q, userID)
}

func (s *FriendshipsStore) ListOutgoing(ctx context.Context, userID string) ([]domain.FriendRequest, error) {
	q := `
		SELECT ` + requestColumns + `
		FROM friend_requests r
		JOIN users u ON u.id = r.to_user_id
		WHERE r.status = 'pending' AND r.from_user_id = $1
		ORDER BY r.updated_at DESC
	`
	return s.listRequests(ctx, "list outgoing requests", q, userID)
}

func (s *FriendshipsStore) listRequests(ctx context.Context, op, q, userID string) ([]domain.FriendRequest, error) {
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.FriendRequest{}
	for rows.Next() {
		fr, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *FriendshipsStore) CountIncoming(ctx context.Context, userID string) (int, error) {
	const q = `SELECT count(*) FROM friend_requests WHERE to_user_id = $1 AND status = 'pending'`
	var n int64
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count incoming requests: %w", err)
	}
	return int(n), nil
}

func mapFriendError(op string, err error) error {
	switch code, constraint := pgCode(err); {
	case code == codeUniqueViolation && constraint == "friend_requests_pending_uq":
		return domain.ErrRequestExists
	case code == codeUniqueViolation && constraint == "friend_edges_pair_uq":
		return domain.ErrAlreadyFriends
	case code == codeForeignKeyViolation:
		return domain.ErrNotFound
	}
	if isMissing(err) {
		return domain.ErrNotFound
	}
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
