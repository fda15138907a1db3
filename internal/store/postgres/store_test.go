package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ourpainthub/internal/domain"
)

// testPool connects to APP_TEST_DB_DSN and applies migrations. Tests that
// need a real database are skipped when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("APP_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_DB_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return pool
}

func createTestUser(t *testing.T, users *UsersStore, prefix string) domain.User {
	t.Helper()
	email := prefix + "-" + uuid.NewString() + "@example.com"
	u, err := users.CreateUser(context.Background(), email, prefix, "hash", false)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func TestFriendshipsMutualRequestAccepts(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := NewUsersStore(pool)
	friends := NewFriendshipsStore(pool)
	a := createTestUser(t, users, "a")
	b := createTestUser(t, users, "b")
	when := time.Now().UTC()

	first, err := friends.SendRequest(ctx, a.ID, b.ID, when)
	if err != nil {
		t.Fatalf("SendRequest a->b: %v", err)
	}
	if first.Status != domain.FriendRequestPending {
		t.Fatalf("first request status: %s", first.Status)
	}
	second, err := friends.SendRequest(ctx, b.ID, a.ID, when.Add(time.Second))
	if err != nil {
		t.Fatalf("SendRequest b->a: %v", err)
	}
	if second.Status != domain.FriendRequestAccepted {
		t.Fatalf("reverse request status: %s", second.Status)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM friend_requests WHERE id = $1`, first.ID).Scan(&status); err != nil {
		t.Fatalf("load first request: %v", err)
	}
	if status != string(domain.FriendRequestAccepted) {
		t.Fatalf("first request should be accepted, is %s", status)
	}

	var edges int
	low, high := domain.FriendPair(a.ID, b.ID)
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM friend_edges WHERE user_low = $1 AND user_high = $2`, low, high).Scan(&edges); err != nil {
		t.Fatalf("count edges: %v", err)
	}
	if edges != 1 {
		t.Fatalf("expected one edge, have %d", edges)
	}
	if ok, err := friends.AreFriends(ctx, b.ID, a.ID); err != nil || !ok {
		t.Fatalf("AreFriends: %v %v", ok, err)
	}
	if out, err := friends.ListOutgoing(ctx, a.ID); err != nil || len(out) != 0 {
		t.Fatalf("no pending requests should remain: %v %v", out, err)
	}

	if _, err := friends.SendRequest(ctx, a.ID, b.ID, when); !errors.Is(err, domain.ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}
}

func TestProjectsUpdateVersioning(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := NewUsersStore(pool)
	projects := NewProjectsStore(pool)
	owner := createTestUser(t, users, "owner")
	when := time.Now().UTC().Truncate(time.Millisecond)

	p, err := projects.CreateProject(ctx, domain.Project{
		OwnerID:     owner.ID,
		Name:        "sketch",
		Type:        domain.ProjectTypeTXT,
		Description: "first",
		CreatedAt:   when,
	}, []byte("v1"))
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Version != 1 || p.SizeBytes != 2 {
		t.Fatalf("unexpected new project: %+v", p)
	}

	stale := 0
	_, err = projects.UpdateProject(ctx, domain.ProjectChange{
		ProjectID: p.ID, ChangerID: owner.ID, Payload: []byte("lost"), ExpectedVersion: &stale, When: when,
	})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	current := 1
	updated, err := projects.UpdateProject(ctx, domain.ProjectChange{
		ProjectID: p.ID, ChangerID: owner.ID, Payload: []byte("second"), Note: "edit", ExpectedVersion: &current, When: when.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if updated.Version != 2 || updated.SizeBytes != int64(len("second")) || updated.Description != "first" {
		t.Fatalf("unexpected updated project: %+v", updated)
	}
	payload, err := projects.GetPayload(ctx, p.ID)
	if err != nil || string(payload) != "second" {
		t.Fatalf("GetPayload: %q %v", payload, err)
	}

	versions, err := projects.ListVersions(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 || versions[0].Description != "edit" || versions[1].Version != 1 {
		t.Fatalf("unexpected versions: %+v", versions)
	}
	if versions[0].ChangerEmail != owner.Email {
		t.Fatalf("changer email: %s", versions[0].ChangerEmail)
	}

	missing := uuid.NewString()
	if _, err := projects.UpdateProject(ctx, domain.ProjectChange{ProjectID: missing, ExpectedVersion: &current, When: when}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserSearchTreatsWildcardsLiterally(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := NewUsersStore(pool)
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	viewer := createTestUser(t, users, "viewer")
	literal, err := users.CreateUser(ctx, "x_"+tag+"@example.com", "literal", "hash", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := users.CreateUser(ctx, "xy"+tag+"@example.com", "other", "hash", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := users.ListUsers(ctx, "X_"+tag, viewer.ID, 50)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(got) != 1 || got[0].ID != literal.ID {
		t.Fatalf("underscore should match only itself: %+v", got)
	}

	got, err = users.ListUsers(ctx, "%"+tag, viewer.ID, 50)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("percent should match only itself: %+v", got)
	}

	admin, err := users.SearchUsers(ctx, "_"+tag, 50, 0)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(admin) != 1 || admin[0].ID != literal.ID {
		t.Fatalf("admin search should treat underscore literally: %+v", admin)
	}
}
