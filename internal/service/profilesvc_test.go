package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
	"ourpainthub/internal/store/memory"
)

func strPtr(s string) *string { return &s }

func newProfileService(st *memory.Store) *service.ProfileService {
	return &service.ProfileService{
		Profiles: st,
		Friends:  st,
		Now:      func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestProfileReadIsFriendGated(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newProfileService(st)
	a := mustUser(t, st, "a@example.com", false)
	b := mustUser(t, st, "b@example.com", false)

	if _, err := svc.GetProfile(ctx, a.ID, b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for strangers, got %v", err)
	}
	own, err := svc.GetProfile(ctx, a.ID, "")
	if err != nil || own.UserID != a.ID {
		t.Fatalf("own profile: %+v %v", own, err)
	}

	if _, err := st.SendRequest(ctx, a.ID, b.ID, time.Now()); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, err := st.SendRequest(ctx, b.ID, a.ID, time.Now()); err != nil {
		t.Fatalf("mutual SendRequest: %v", err)
	}
	p, err := svc.GetProfile(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("friend profile: %v", err)
	}
	if p.FriendsCount != 1 {
		t.Fatalf("expected friends_count 1, got %d", p.FriendsCount)
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newProfileService(st)
	u := mustUser(t, st, "painter@example.com", false)

	_, err := svc.UpdateProfile(ctx, u.ID, service.ProfileUpdate{
		Nickname:    strPtr("   "),
		Bio:         strPtr(strings.Repeat("x", 2001)),
		DateOfBirth: strPtr("2020-01-01"),
		Avatar:      strPtr("not base64!"),
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"nickname", "bio", "date_of_birth", "avatar"} {
		if ve.Fields[f] == "" {
			t.Fatalf("expected %s field error, got %v", f, ve.Fields)
		}
	}

	if _, err := svc.UpdateProfile(ctx, u.ID, service.ProfileUpdate{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty update should be rejected, got %v", err)
	}
}

func TestProfileUpdateStoresAvatarAsDataURI(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newProfileService(st)
	u := mustUser(t, st, "painter@example.com", false)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	raw := "data:image/whatever;base64," + base64.StdEncoding.EncodeToString(png)
	p, err := svc.UpdateProfile(ctx, u.ID, service.ProfileUpdate{
		Nickname:    strPtr(" Painter "),
		DateOfBirth: strPtr("1990-04-02"),
		Avatar:      &raw,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.Nickname != "Painter" || p.DateOfBirth == nil || p.DateOfBirth.Year() != 1990 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if uri := service.AvatarDataURI(p); !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected avatar uri: %s", uri)
	}

	cleared, err := svc.UpdateProfile(ctx, u.ID, service.ProfileUpdate{Avatar: strPtr("")})
	if err != nil {
		t.Fatalf("clear avatar: %v", err)
	}
	if service.AvatarDataURI(cleared) != "" {
		t.Fatalf("expected avatar to be cleared")
	}
}
