package httpapi

import (
	"net/http"
	"strings"

	"ourpainthub/internal/domain"
)

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.friendsSvc.ListFriends(r.Context(), u.ID, r.URL.Query().Get("search"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleFriendsIncoming(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.friendsSvc.ListIncoming(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleFriendsOutgoing(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.friendsSvc.ListOutgoing(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

type countResponse struct {
	Count int `json:"count"`
}

func (a *api) handleFriendsIncomingCount(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	n, err := a.friendsSvc.CountIncoming(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, countResponse{Count: n})
}

type friendIDRequest struct {
	FriendID string `json:"friend_id"`
}

func (a *api) handleFriendsAdd(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req friendIDRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req, maxJSONBody); err != nil {
		writeBadJSON(w, err)
		return
	}
	friendID := strings.TrimSpace(req.FriendID)
	if friendID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"friend_id": "required"}))
		return
	}

	fr, err := a.friendsSvc.SendRequest(r.Context(), u.ID, friendID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if fr.Status == domain.FriendRequestAccepted {
		WriteJSON(w, http.StatusOK, messageResponse{Message: "you are now friends", Status: string(fr.Status)})
		return
	}
	WriteJSON(w, http.StatusCreated, messageResponse{Message: "friend request sent", Status: string(fr.Status)})
}

type respondRequest struct {
	FromUserID string `json:"from_user_id"`
	Action     string `json:"action"`
}

func (a *api) handleFriendsRespond(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req respondRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req, maxJSONBody); err != nil {
		writeBadJSON(w, err)
		return
	}
	fromID := strings.TrimSpace(req.FromUserID)
	if fromID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"from_user_id": "required"}))
		return
	}

	action := domain.FriendAction(strings.ToLower(strings.TrimSpace(req.Action)))
	fr, err := a.friendsSvc.Respond(r.Context(), u.ID, fromID, action)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	msg := "friend request declined"
	if fr.Status == domain.FriendRequestAccepted {
		msg = "friend request accepted"
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: msg, Status: string(fr.Status)})
}

type cancelRequest struct {
	ReceiverID string `json:"receiver_id"`
}

func (a *api) handleFriendsCancel(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req cancelRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req, maxJSONBody); err != nil {
		writeBadJSON(w, err)
		return
	}
	receiverID := strings.TrimSpace(req.ReceiverID)
	if receiverID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"receiver_id": "required"}))
		return
	}

	if err := a.friendsSvc.Cancel(r.Context(), u.ID, receiverID); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "friend request cancelled"})
}

// handleFriendsRemove takes friend_id from the JSON body or, for clients that
// cannot send a DELETE body, from the query string.
func (a *api) handleFriendsRemove(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req friendIDRequest
	empty, err := decodeJSONAllowEmpty(w, r, &req)
	if err != nil {
		writeBadJSON(w, err)
		return
	}
	friendID := strings.TrimSpace(req.FriendID)
	if empty || friendID == "" {
		friendID = strings.TrimSpace(r.URL.Query().Get("friend_id"))
	}
	if friendID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"friend_id": "required"}))
		return
	}

	if err := a.friendsSvc.Remove(r.Context(), u.ID, friendID); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "friend removed"})
}
