package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/notifications"
)

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotificationService fans social events out to device pushes and email.
// Either channel may be nil.
type NotificationService struct {
	Tokens NotificationTokensStore
	Users  UserLookup
	Sender PushSender
	Mailer Mailer
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *NotificationService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	p := domain.Platform(strings.TrimSpace(strings.ToLower(platform)))
	fields := map[string]string{}
	if token == "" {
		fields["token"] = "required"
	}
	switch p {
	case domain.PlatformAndroid, domain.PlatformIOS:
	case "":
		fields["platform"] = "required"
	default:
		fields["platform"] = "must be ios or android"
	}
	if len(fields) > 0 {
		return domain.NotificationToken{}, domain.NewValidationError(fields)
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	when := now().UTC().Truncate(time.Millisecond)
	return s.Tokens.UpsertToken(ctx, userID, token, p, when)
}

func (s *NotificationService) DeleteToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Tokens.DeleteToken(ctx, userID, token)
}

func (s *NotificationService) NotifyFriendRequest(ctx context.Context, n FriendRequestNotification) error {
	if s.Users == nil {
		return nil
	}
	actor, err := s.Users.GetUserByID(ctx, n.ActorID)
	if err != nil {
		s.logger().Error("notifications: actor lookup failed", "err", err, "user_id", n.ActorID)
		return err
	}
	name := displayName(actor)

	kind, title, body := "friend_request", "Friend request", name+" sent you a friend request."
	if n.Status == domain.FriendRequestAccepted {
		kind, title, body = "friend_accepted", "New friend", name+" is now your friend."
	}
	data := map[string]string{
		"type":       kind,
		"request_id": n.RequestID,
		"user_id":    actor.ID,
		"email":      actor.Email,
		"nickname":   actor.Nickname,
	}
	s.deliver(ctx, n.RecipientID, data, title, body)
	return nil
}

func (s *NotificationService) NotifyProjectShared(ctx context.Context, n ProjectSharedNotification) error {
	if s.Users == nil {
		return nil
	}
	sender, err := s.Users.GetUserByID(ctx, n.SenderID)
	if err != nil {
		s.logger().Error("notifications: sender lookup failed", "err", err, "user_id", n.SenderID)
		return err
	}
	body := fmt.Sprintf("%s shared %q with you.", displayName(sender), n.ProjectName)
	if c := strings.TrimSpace(n.Comment); c != "" {
		body += "\n\n" + c
	}
	data := map[string]string{
		"type":         "project_shared",
		"shared_id":    n.SharedID,
		"project_id":   n.ProjectID,
		"project_name": n.ProjectName,
		"user_id":      sender.ID,
		"email":        sender.Email,
	}
	s.deliver(ctx, n.RecipientID, data, "New shared project", body)
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, recipientID string, data map[string]string, title, body string) {
	s.push(ctx, recipientID, data, title, body)
	s.mail(ctx, recipientID, title, body)
}

func (s *NotificationService) push(ctx context.Context, recipientID string, data map[string]string, title, body string) {
	if s.Tokens == nil || s.Sender == nil {
		return
	}
	logger := s.logger()
	tokens, err := s.Tokens.ListTokens(ctx, recipientID)
	if err != nil {
		logger.Error("notifications: list tokens failed", "err", err, "user_id", recipientID)
		return
	}

	dataOnly := notifications.Message{Data: data}
	alert := notifications.Message{
		Data:         data,
		Notification: &notifications.Notification{Title: title, Body: body},
	}
	for _, token := range tokens {
		msg := dataOnly
		if token.Platform == domain.PlatformIOS {
			msg = alert
		}
		if err := s.Sender.Send(ctx, token.Token, msg); err != nil {
			if errors.Is(err, notifications.ErrInvalidToken) {
				if delErr := s.Tokens.DeleteToken(ctx, recipientID, token.Token); delErr != nil {
					logger.Error("notifications: delete invalid token failed", "err", delErr, "user_id", recipientID)
				}
				continue
			}
			logger.Error("notifications: send failed", "err", err, "user_id", recipientID)
		}
	}
}

func (s *NotificationService) mail(ctx context.Context, recipientID, subject, body string) {
	if s.Mailer == nil {
		return
	}
	recipient, err := s.Users.GetUserByID(ctx, recipientID)
	if err != nil {
		s.logger().Error("notifications: recipient lookup failed", "err", err, "user_id", recipientID)
		return
	}
	if recipient.Status != domain.UserStatusActive || recipient.Email == "" {
		return
	}
	if err := s.Mailer.Send(ctx, recipient.Email, subject, body); err != nil {
		s.logger().Error("notifications: email failed", "err", err, "user_id", recipientID)
	}
}

func displayName(u domain.User) string {
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	return u.Email
}
