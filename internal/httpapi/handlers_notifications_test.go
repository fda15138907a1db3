package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

type stubNotificationTokensStore struct {
	t *testing.T

	upsertFunc func(context.Context, string, string, domain.Platform, time.Time) (domain.NotificationToken, error)
	deleteFunc func(context.Context, string, string) error
}

func (s *stubNotificationTokensStore) UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.NotificationToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	s.t.Fatalf("UpsertToken called unexpectedly")
	return domain.NotificationToken{}, context.Canceled
}

func (s *stubNotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID, token)
	}
	s.t.Fatalf("DeleteToken called unexpectedly")
	return context.Canceled
}

func (s *stubNotificationTokensStore) ListTokens(context.Context, string) ([]domain.NotificationToken, error) {
	s.t.Fatalf("ListTokens called unexpectedly")
	return nil, context.Canceled
}

func TestNotificationsTokenUpsertRejectsInvalidPlatform(t *testing.T) {
	api := &api{
		notificationsSvc: &service.NotificationService{
			Tokens: &stubNotificationTokensStore{t: t},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/tokens/", strings.NewReader(`{"token":"t","platform":"web"}`))
	rr := httptest.NewRecorder()

	api.handleNotificationsTokenUpsert(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "validation_error" || e.Fields["platform"] == "" {
		t.Fatalf("unexpected error: %+v", e)
	}
}

func TestNotificationsTokenUpsertAcceptsIOSPlatform(t *testing.T) {
	called := false
	api := &api{
		notificationsSvc: &service.NotificationService{
			Tokens: &stubNotificationTokensStore{
				t: t,
				upsertFunc: func(_ context.Context, userID, token string, platform domain.Platform, _ time.Time) (domain.NotificationToken, error) {
					called = true
					if userID != "user-1" || token != "t" || platform != domain.PlatformIOS {
						t.Fatalf("unexpected args: %s %s %s", userID, token, platform)
					}
					return domain.NotificationToken{Token: token, Platform: platform}, nil
				},
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/tokens/", strings.NewReader(`{"token":"t","platform":"iOS"}`))
	rr := httptest.NewRecorder()

	api.handleNotificationsTokenUpsert(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if !called {
		t.Fatalf("expected token upsert to be called")
	}
}

func TestNotificationsTokenDeleteFromQuery(t *testing.T) {
	called := false
	api := &api{
		notificationsSvc: &service.NotificationService{
			Tokens: &stubNotificationTokensStore{
				t: t,
				deleteFunc: func(_ context.Context, userID, token string) error {
					called = true
					if userID != "user-1" || token != "abc" {
						t.Fatalf("unexpected args: %s %s", userID, token)
					}
					return nil
				},
			},
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/notifications/tokens/?token=abc", nil)
	rr := httptest.NewRecorder()

	api.handleNotificationsTokenDelete(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusNoContent || !called {
		t.Fatalf("unexpected result: status %d called %v", rr.Code, called)
	}
}
