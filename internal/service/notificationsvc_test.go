package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/notifications"
)

type stubNotificationTokensStore struct {
	upsertFunc func(context.Context, string, string, domain.Platform, time.Time) (domain.NotificationToken, error)
	deleteFunc func(context.Context, string, string) error
	listFunc   func(context.Context, string) ([]domain.NotificationToken, error)
}

func (s *stubNotificationTokensStore) UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.NotificationToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	return domain.NotificationToken{}, errors.New("upsert not stubbed")
}

func (s *stubNotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID, token)
	}
	return errors.New("delete not stubbed")
}

func (s *stubNotificationTokensStore) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, userID)
	}
	return nil, errors.New("list not stubbed")
}

type stubUserLookup map[string]domain.User

func (s stubUserLookup) GetUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := s[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type stubPushSender struct {
	sendFunc func(context.Context, string, notifications.Message) error
}

func (s *stubPushSender) Send(ctx context.Context, token string, msg notifications.Message) error {
	if s.sendFunc != nil {
		return s.sendFunc(ctx, token, msg)
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type stubMailer struct {
	sent []sentMail
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to, subject, body})
	return m.err
}

var notifyUsers = stubUserLookup{
	"user-1": {ID: "user-1", Email: "alice@example.com", Nickname: "alice", Status: domain.UserStatusActive},
	"user-2": {ID: "user-2", Email: "bob@example.com", Nickname: "bob", Status: domain.UserStatusActive},
	"user-3": {ID: "user-3", Email: "carol@example.com", Status: domain.UserStatusDisabled},
}

func TestNotificationServiceRegisterTokenValidation(t *testing.T) {
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{},
	}

	if _, err := svc.RegisterToken(context.Background(), "user-1", "", "android"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty token, got %v", err)
	}
	if _, err := svc.RegisterToken(context.Background(), "user-1", "token", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty platform, got %v", err)
	}
	if _, err := svc.RegisterToken(context.Background(), "user-1", "token", "windows"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown platform, got %v", err)
	}
}

func TestNotificationServiceRegisterTokenNormalizesPlatform(t *testing.T) {
	var gotPlatform domain.Platform
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{
			upsertFunc: func(_ context.Context, userID, token string, platform domain.Platform, _ time.Time) (domain.NotificationToken, error) {
				gotPlatform = platform
				return domain.NotificationToken{UserID: userID, Token: token, Platform: platform}, nil
			},
		},
	}
	if _, err := svc.RegisterToken(context.Background(), "user-1", " tok ", " iOS "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPlatform != domain.PlatformIOS {
		t.Fatalf("unexpected platform: %q", gotPlatform)
	}
}

func TestNotificationServiceNotifyFriendRequestDeletesInvalidToken(t *testing.T) {
	deleted := false
	tokens := &stubNotificationTokensStore{
		listFunc: func(_ context.Context, userID string) ([]domain.NotificationToken, error) {
			if userID != "user-2" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return []domain.NotificationToken{{Token: "token-1", Platform: domain.PlatformAndroid}}, nil
		},
		deleteFunc: func(_ context.Context, userID, token string) error {
			if userID != "user-2" || token != "token-1" {
				t.Fatalf("unexpected delete args: %s %s", userID, token)
			}
			deleted = true
			return nil
		},
	}
	sender := &stubPushSender{
		sendFunc: func(_ context.Context, token string, msg notifications.Message) error {
			if msg.Data["type"] != "friend_request" || msg.Data["email"] != "alice@example.com" {
				t.Fatalf("unexpected payload: %v", msg.Data)
			}
			if msg.Notification != nil {
				t.Fatalf("android push should be data-only")
			}
			return notifications.ErrInvalidToken
		},
	}

	svc := &NotificationService{Tokens: tokens, Users: notifyUsers, Sender: sender}
	err := svc.NotifyFriendRequest(context.Background(), FriendRequestNotification{
		RequestID:   "req-1",
		ActorID:     "user-1",
		RecipientID: "user-2",
		Status:      domain.FriendRequestPending,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected invalid token to be deleted")
	}
}

func TestNotificationServiceNotifyProjectSharedIOSAlertAndEmail(t *testing.T) {
	var got notifications.Message
	mailer := &stubMailer{}
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{
			listFunc: func(context.Context, string) ([]domain.NotificationToken, error) {
				return []domain.NotificationToken{{Token: "ios-token", Platform: domain.PlatformIOS}}, nil
			},
		},
		Users:  notifyUsers,
		Sender: &stubPushSender{sendFunc: func(_ context.Context, _ string, msg notifications.Message) error { got = msg; return nil }},
		Mailer: mailer,
	}

	err := svc.NotifyProjectShared(context.Background(), ProjectSharedNotification{
		SharedID:    "share-1",
		ProjectID:   "proj-1",
		ProjectName: "Sunset",
		SenderID:    "user-1",
		RecipientID: "user-2",
		Comment:     "take a look",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Notification == nil || !strings.Contains(got.Notification.Body, `"Sunset"`) {
		t.Fatalf("expected ios alert, got %+v", got)
	}
	if got.Data["shared_id"] != "share-1" || got.Data["project_id"] != "proj-1" {
		t.Fatalf("unexpected data: %v", got.Data)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "bob@example.com" {
		t.Fatalf("expected one email to bob, got %+v", mailer.sent)
	}
	if !strings.Contains(mailer.sent[0].body, "take a look") {
		t.Fatalf("expected comment in email body")
	}
}

func TestNotificationServiceSkipsEmailForDisabledRecipient(t *testing.T) {
	mailer := &stubMailer{}
	svc := &NotificationService{Users: notifyUsers, Mailer: mailer}
	err := svc.NotifyFriendRequest(context.Background(), FriendRequestNotification{
		ActorID:     "user-1",
		RecipientID: "user-3",
		Status:      domain.FriendRequestAccepted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email, got %+v", mailer.sent)
	}
}

func TestNotificationServiceMailFailureIsNotReturned(t *testing.T) {
	svc := &NotificationService{Users: notifyUsers, Mailer: &stubMailer{err: errors.New("smtp down")}}
	err := svc.NotifyFriendRequest(context.Background(), FriendRequestNotification{
		ActorID:     "user-1",
		RecipientID: "user-2",
		Status:      domain.FriendRequestAccepted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
