package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"ourpainthub/internal/domain"
)

func TestUUIDBytesToString(t *testing.T) {
	b := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	if got := uuidBytesToString(b); got != "12345678-9abc-def0-0123-456789abcdef" {
		t.Fatalf("unexpected uuid string: %s", got)
	}
	if got := uuidOrEmpty(pgtype.UUID{}); got != "" {
		t.Fatalf("expected empty for invalid uuid, got %q", got)
	}
}

func TestIsMissing(t *testing.T) {
	if !isMissing(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected no rows to be missing")
	}
	if !isMissing(&pgconn.PgError{Code: codeInvalidText}) {
		t.Fatalf("expected invalid uuid text to be missing")
	}
	if isMissing(&pgconn.PgError{Code: codeUniqueViolation}) {
		t.Fatalf("unique violation is not missing")
	}
}

func TestMapFriendError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"pending index", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "friend_requests_pending_uq"}, domain.ErrRequestExists},
		{"edge index", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "friend_edges_pair_uq"}, domain.ErrAlreadyFriends},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, domain.ErrNotFound},
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"domain passthrough", domain.ErrAlreadyFriends, domain.ErrAlreadyFriends},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapFriendError("op", tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	other := errors.New("boom")
	got := mapFriendError("send friend request", other)
	if !errors.Is(got, other) || isDomainError(got) {
		t.Fatalf("expected wrapped internal error, got %v", got)
	}
}
