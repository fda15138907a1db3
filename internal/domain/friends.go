package domain

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending   FriendRequestStatus = "pending"
	FriendRequestAccepted  FriendRequestStatus = "accepted"
	FriendRequestDeclined  FriendRequestStatus = "declined"
	FriendRequestCancelled FriendRequestStatus = "cancelled"
)

// FriendRequest is one directed request. User is the counterparty from the
// point of view of whoever listed it: the sender for incoming requests, the
// receiver for outgoing ones.
type FriendRequest struct {
	ID         string              `json:"id"`
	FromUserID string              `json:"from_user_id"`
	ToUserID   string              `json:"to_user_id"`
	Status     FriendRequestStatus `json:"status"`
	User       UserSummary         `json:"user"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
}

type FriendAction string

const (
	FriendActionAccept  FriendAction = "accept"
	FriendActionDecline FriendAction = "decline"
)

// FriendPair orders two user ids so an undirected edge has one canonical key.
func FriendPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}
