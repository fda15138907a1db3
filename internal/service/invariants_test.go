package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
	"ourpainthub/internal/store/memory"
)

type fixture struct {
	store    *memory.Store
	auth     *service.AuthService
	friends  *service.FriendsService
	projects *service.ProjectsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	audit := &service.AuditLog{Store: st, Now: now}
	return &fixture{
		store: st,
		auth: &service.AuthService{
			Users:      st,
			Sessions:   st,
			Audit:      audit,
			SessionTTL: time.Hour,
			Now:        now,
		},
		friends: &service.FriendsService{
			Users:       st,
			Friendships: st,
			Audit:       audit,
			Now:         now,
		},
		projects: &service.ProjectsService{
			Projects: st,
			Shares:   st,
			Users:    st,
			Friends:  st,
			Audit:    audit,
			Now:      now,
		},
	}
}

func (f *fixture) user(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), email, domain.DefaultNickname(email), "", false)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (f *fixture) befriend(t *testing.T, a, b domain.User) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.friends.SendRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := f.friends.Respond(ctx, b.ID, a.ID, domain.FriendActionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func (f *fixture) project(t *testing.T, owner domain.User, private bool) domain.Project {
	t.Helper()
	p, err := f.projects.Create(context.Background(), owner.ID, service.NewProject{
		Name:        "Sunset",
		FileName:    "sunset.ourp",
		Description: "first draft",
		Private:     private,
		Payload:     []byte("layers"),
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestMutualRequestsProduceOneEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@example.com"), f.user(t, "b@example.com")

	first, err := f.friends.SendRequest(ctx, a.ID, b.ID)
	if err != nil || first.Status != domain.FriendRequestPending {
		t.Fatalf("first request: %+v %v", first, err)
	}
	second, err := f.friends.SendRequest(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.Status != domain.FriendRequestAccepted {
		t.Fatalf("expected auto-accept, got %s", second.Status)
	}
	stored, err := f.store.GetRequest(ctx, first.ID)
	if err != nil {
		t.Fatalf("load first request: %v", err)
	}
	if stored.Status != domain.FriendRequestAccepted || stored.ResolvedAt == nil {
		t.Fatalf("first request should be accepted, got %+v", stored)
	}
	if out, _ := f.friends.ListOutgoing(ctx, a.ID); len(out) != 0 {
		t.Fatalf("expected no outgoing requests for a, got %v", out)
	}

	friendsA, _ := f.friends.ListFriends(ctx, a.ID, "")
	friendsB, _ := f.friends.ListFriends(ctx, b.ID, "")
	if len(friendsA) != 1 || friendsA[0].ID != b.ID || len(friendsB) != 1 || friendsB[0].ID != a.ID {
		t.Fatalf("expected exactly one edge, got %v / %v", friendsA, friendsB)
	}
	for _, id := range []string{a.ID, b.ID} {
		if n, _ := f.friends.CountIncoming(ctx, id); n != 0 {
			t.Fatalf("expected no pending requests for %s, got %d", id, n)
		}
	}
	if _, err := f.friends.SendRequest(ctx, a.ID, b.ID); !errors.Is(err, domain.ErrAlreadyFriends) {
		t.Fatalf("expected already friends, got %v", err)
	}
}

func TestDuplicatePendingRequestConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@example.com"), f.user(t, "b@example.com")

	if _, err := f.friends.SendRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, a.ID, b.ID); !errors.Is(err, domain.ErrRequestExists) {
		t.Fatalf("expected request exists, got %v", err)
	}
	if n, _ := f.friends.CountIncoming(ctx, b.ID); n != 1 {
		t.Fatalf("expected one pending, got %d", n)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, friend := f.user(t, "owner@example.com"), f.user(t, "friend@example.com")
	p := f.project(t, owner, false)

	desc := "second"
	if _, err := f.projects.Update(ctx, owner.ID, p.ID, service.ProjectEdit{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	results, err := f.projects.Share(ctx, owner.ID, p.ID, []string{friend.ID}, "")
	if err != nil || service.IsShareFailure(results) {
		t.Fatalf("share: %v %+v", err, results)
	}

	if err := f.projects.Delete(ctx, owner.ID, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.ListVersions(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected versions gone, got %v", err)
	}
	if _, err := f.store.GetShare(ctx, results[0].SharedID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected share gone, got %v", err)
	}
	received, _ := f.projects.ListReceived(ctx, friend.ID)
	if len(received) != 0 {
		t.Fatalf("expected no received entries, got %d", len(received))
	}
}

func TestPrivateProjectDownloadVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	stranger := f.user(t, "stranger@example.com")
	friend := f.user(t, "friend@example.com")
	recipient := f.user(t, "recipient@example.com")
	f.befriend(t, owner, friend)

	p := f.project(t, owner, true)
	if _, err := f.projects.Share(ctx, owner.ID, p.ID, []string{recipient.ID}, ""); err != nil {
		t.Fatalf("share: %v", err)
	}

	if _, _, err := f.projects.Download(ctx, stranger.ID, p.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger: expected forbidden, got %v", err)
	}
	if _, _, err := f.projects.Download(ctx, friend.ID, p.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("friend on private project: expected forbidden, got %v", err)
	}
	if _, payload, err := f.projects.Download(ctx, recipient.ID, p.ID); err != nil || string(payload) != "layers" {
		t.Fatalf("recipient: %q %v", payload, err)
	}
	if _, _, err := f.projects.Download(ctx, owner.ID, p.ID); err != nil {
		t.Fatalf("owner: %v", err)
	}

	public := f.project(t, owner, false)
	if _, _, err := f.projects.Download(ctx, friend.ID, public.ID); err != nil {
		t.Fatalf("friend on public project: %v", err)
	}
	if _, _, err := f.projects.Download(ctx, stranger.ID, public.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger on public project: expected forbidden, got %v", err)
	}
}

func TestUpdateProjectAppendsNewestVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner, false)

	before, err := f.projects.ListVersions(ctx, owner.ID, p.ID)
	if err != nil || len(before) != 1 || before[0].Version != 1 {
		t.Fatalf("initial versions: %+v %v", before, err)
	}

	expected := 1
	updated, err := f.projects.Update(ctx, owner.ID, p.ID, service.ProjectEdit{
		Payload:         []byte("more layers"),
		FileName:        "sunset.png",
		Note:            "added sky",
		ExpectedVersion: &expected,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || updated.Type != domain.ProjectTypePNG {
		t.Fatalf("unexpected project after update: %+v", updated)
	}

	after, err := f.projects.ListVersions(ctx, owner.ID, p.ID)
	if err != nil || len(after) != 2 {
		t.Fatalf("versions after update: %+v %v", after, err)
	}
	if after[0].Version != 2 || after[0].Description != "added sky" || after[0].ChangerID != owner.ID {
		t.Fatalf("unexpected newest version: %+v", after[0])
	}
	if !after[0].CreatedAt.After(after[1].CreatedAt) {
		t.Fatalf("newest version not after prior: %s vs %s", after[0].CreatedAt, after[1].CreatedAt)
	}

	if _, err := f.projects.Update(ctx, owner.ID, p.ID, service.ProjectEdit{Note: "x", Payload: []byte("y"), ExpectedVersion: &expected}); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestCancelRequestTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@example.com"), f.user(t, "b@example.com")

	if _, err := f.friends.SendRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.friends.Cancel(ctx, b.ID, a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("receiver cancel: expected forbidden, got %v", err)
	}
	if err := f.friends.Cancel(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := f.friends.Cancel(ctx, a.ID, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second cancel: expected not found, got %v", err)
	}
	out, _ := f.friends.ListOutgoing(ctx, a.ID)
	in, _ := f.friends.ListIncoming(ctx, b.ID)
	if len(out) != 0 || len(in) != 0 {
		t.Fatalf("expected no pending requests, got %d/%d", len(out), len(in))
	}
	if _, err := f.friends.SendRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("re-send after cancel: %v", err)
	}
}

func TestShareWithTwoRecipientsIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	b, c := f.user(t, "b@example.com"), f.user(t, "c@example.com")
	p := f.project(t, owner, true)

	results, err := f.projects.Share(ctx, owner.ID, p.ID, []string{b.ID, c.ID, b.ID}, "look")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if len(results) != 2 || service.IsShareFailure(results) {
		t.Fatalf("expected two successful results, got %+v", results)
	}

	again, err := f.projects.Share(ctx, owner.ID, p.ID, []string{b.ID}, "")
	if err != nil || len(again) != 1 || !errors.Is(again[0].Err, domain.ErrAlreadyShared) {
		t.Fatalf("expected already shared, got %+v %v", again, err)
	}

	if err := f.projects.DeleteShared(ctx, c.ID, results[0].SharedID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-recipient delete: expected forbidden, got %v", err)
	}
	if err := f.projects.DeleteShared(ctx, b.ID, results[0].SharedID); err != nil {
		t.Fatalf("delete share: %v", err)
	}

	if _, err := f.store.GetProject(ctx, p.ID); err != nil {
		t.Fatalf("project should survive share deletion: %v", err)
	}
	receivedC, _ := f.projects.ListReceived(ctx, c.ID)
	if len(receivedC) != 1 || receivedC[0].Share.Comment != "look" || receivedC[0].Capabilities.Edit {
		t.Fatalf("unexpected received entries for c: %+v", receivedC)
	}
	receivedB, _ := f.projects.ListReceived(ctx, b.ID)
	if len(receivedB) != 0 {
		t.Fatalf("expected b's share gone, got %d", len(receivedB))
	}
}

func TestRegisterSameEmailTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.auth.Register(ctx, "artist@example.com", "secret1", "", "", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := f.auth.Register(ctx, "ARTIST@example.com", "secret2", "", "", "")
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	users, _ := f.store.SearchUsers(ctx, "artist@", 10, 0)
	if len(users) != 1 {
		t.Fatalf("expected exactly one user row, got %d", len(users))
	}
}

func TestRemoveFriendIsIdempotentAndKeepsShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@example.com"), f.user(t, "b@example.com")
	f.befriend(t, a, b)
	p := f.project(t, a, false)
	if _, err := f.projects.Share(ctx, a.ID, p.ID, []string{b.ID}, ""); err != nil {
		t.Fatalf("share: %v", err)
	}

	if err := f.friends.Remove(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.friends.Remove(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if ok, _ := f.friends.AreFriends(ctx, a.ID, b.ID); ok {
		t.Fatalf("expected edge removed")
	}
	if _, _, err := f.projects.Download(ctx, b.ID, p.ID); err != nil {
		t.Fatalf("share should still grant access: %v", err)
	}
	if _, err := f.projects.ListUserProjects(ctx, b.ID, a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected friend gate after unfriending, got %v", err)
	}
}
