package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ourpainthub/internal/domain"
)

type FriendshipsStore interface {
	FriendChecker
	// SendRequest records fromID -> toID atomically. If toID already has a
	// pending request to fromID, both become accepted and the edge is created.
	SendRequest(ctx context.Context, fromID, toID string, when time.Time) (domain.FriendRequest, error)
	Respond(ctx context.Context, fromID, toID string, action domain.FriendAction, when time.Time) (domain.FriendRequest, error)
	Cancel(ctx context.Context, fromID, toID string, when time.Time) (domain.FriendRequest, error)
	HasPending(ctx context.Context, fromID, toID string) (bool, error)
	RemoveFriend(ctx context.Context, userA, userB string) (bool, error)
	ListFriends(ctx context.Context, userID, search string) ([]domain.UserSummary, error)
	ListIncoming(ctx context.Context, userID string) ([]domain.FriendRequest, error)
	ListOutgoing(ctx context.Context, userID string) ([]domain.FriendRequest, error)
	CountIncoming(ctx context.Context, userID string) (int, error)
}

type FriendRequestNotification struct {
	RequestID   string
	ActorID     string
	RecipientID string
	Status      domain.FriendRequestStatus
}

type FriendRequestNotifier interface {
	NotifyFriendRequest(ctx context.Context, n FriendRequestNotification) error
}

type FriendsService struct {
	Users       UserLookup
	Friendships FriendshipsStore
	Notifier    FriendRequestNotifier
	Audit       AuditRecorder
	Logger      *slog.Logger
	Now         func() time.Time
}

func (s *FriendsService) now() time.Time {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC()
}

func (s *FriendsService) SendRequest(ctx context.Context, fromID, toID string) (domain.FriendRequest, error) {
	toID = strings.TrimSpace(toID)
	if toID == "" {
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"friend_id": "required"})
	}
	if toID == fromID {
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"friend_id": "cannot friend yourself"})
	}

	target, err := s.Users.GetUserByID(ctx, toID)
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if target.Status == domain.UserStatusDisabled {
		return domain.FriendRequest{}, domain.ErrForbidden
	}

	fr, err := s.Friendships.SendRequest(ctx, fromID, toID, s.now())
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if fr.User.ID == "" {
		fr.User = target.Summary()
	}

	record(ctx, s.Audit, fromID, domain.AuditAdd, "friend_request", fr.ID)
	if fr.Status == domain.FriendRequestAccepted {
		record(ctx, s.Audit, fromID, domain.AuditAdd, "friendship", toID)
	}
	s.notify(ctx, FriendRequestNotification{RequestID: fr.ID, ActorID: fromID, RecipientID: toID, Status: fr.Status})
	return fr, nil
}

// Respond lets userID accept or decline the pending request sent by fromID.
func (s *FriendsService) Respond(ctx context.Context, userID, fromID string, action domain.FriendAction) (domain.FriendRequest, error) {
	fromID = strings.TrimSpace(fromID)
	if fromID == "" {
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"from_user_id": "required"})
	}
	switch action {
	case domain.FriendActionAccept, domain.FriendActionDecline:
	default:
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"action": "must be accept or decline"})
	}

	fr, err := s.Friendships.Respond(ctx, fromID, userID, action, s.now())
	if err != nil {
		return domain.FriendRequest{}, err
	}

	record(ctx, s.Audit, userID, domain.AuditChange, "friend_request", fr.ID)
	if fr.Status == domain.FriendRequestAccepted {
		record(ctx, s.Audit, userID, domain.AuditAdd, "friendship", fromID)
		s.notify(ctx, FriendRequestNotification{RequestID: fr.ID, ActorID: userID, RecipientID: fromID, Status: fr.Status})
	}
	return fr, nil
}

// Cancel withdraws userID's own pending request to toID. A pending request in
// the other direction belongs to toID, so touching it is forbidden.
func (s *FriendsService) Cancel(ctx context.Context, userID, toID string) error {
	toID = strings.TrimSpace(toID)
	if toID == "" {
		return domain.NewValidationError(map[string]string{"receiver_id": "required"})
	}

	fr, err := s.Friendships.Cancel(ctx, userID, toID, s.now())
	if err == nil {
		record(ctx, s.Audit, userID, domain.AuditChange, "friend_request", fr.ID)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	reverse, rerr := s.Friendships.HasPending(ctx, toID, userID)
	if rerr != nil {
		return rerr
	}
	if reverse {
		return domain.ErrForbidden
	}
	return domain.ErrNotFound
}

// Remove deletes the friendship edge. Removing an edge that does not exist
// succeeds so retries are harmless.
func (s *FriendsService) Remove(ctx context.Context, userID, friendID string) error {
	friendID = strings.TrimSpace(friendID)
	if friendID == "" {
		return domain.NewValidationError(map[string]string{"friend_id": "required"})
	}
	if friendID == userID {
		return domain.NewValidationError(map[string]string{"friend_id": "cannot unfriend yourself"})
	}
	removed, err := s.Friendships.RemoveFriend(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if removed {
		record(ctx, s.Audit, userID, domain.AuditDelete, "friendship", friendID)
	}
	return nil
}

func (s *FriendsService) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	if userA == userB {
		return false, nil
	}
	return s.Friendships.AreFriends(ctx, userA, userB)
}

func (s *FriendsService) ListFriends(ctx context.Context, userID, search string) ([]domain.UserSummary, error) {
	out, err := s.Friendships.ListFriends(ctx, userID, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.UserSummary{}
	}
	return out, nil
}

func (s *FriendsService) ListIncoming(ctx context.Context, userID string) ([]domain.FriendRequest, error) {
	return nonNilRequests(s.Friendships.ListIncoming(ctx, userID))
}

func (s *FriendsService) ListOutgoing(ctx context.Context, userID string) ([]domain.FriendRequest, error) {
	return nonNilRequests(s.Friendships.ListOutgoing(ctx, userID))
}

func (s *FriendsService) CountIncoming(ctx context.Context, userID string) (int, error) {
	return s.Friendships.CountIncoming(ctx, userID)
}

func (s *FriendsService) notify(ctx context.Context, n FriendRequestNotification) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.NotifyFriendRequest(ctx, n); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("friend request notification failed", "err", err, "request_id", n.RequestID)
	}
}

func nonNilRequests(out []domain.FriendRequest, err error) ([]domain.FriendRequest, error) {
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.FriendRequest{}
	}
	return out, nil
}
