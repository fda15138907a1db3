package memory

import (
	"context"
	"sort"
	"time"

	"ourpainthub/internal/domain"
)

func edgeKey(a, b string) [2]string {
	low, high := domain.FriendPair(a, b)
	return [2]string{low, high}
}

func (s *Store) pendingLocked(fromID, toID string) *requestRow {
	for _, r := range s.requests {
		if r.FromUserID == fromID && r.ToUserID == toID && r.Status == domain.FriendRequestPending {
			return r
		}
	}
	return nil
}

func (s *Store) friendsCountLocked(userID string) int {
	n := 0
	for k := range s.edges {
		if k[0] == userID || k[1] == userID {
			n++
		}
	}
	return n
}

func (s *Store) SendRequest(_ context.Context, fromID, toID string, when time.Time) (domain.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[toID]; !ok {
		return domain.FriendRequest{}, domain.ErrNotFound
	}
	if _, ok := s.edges[edgeKey(fromID, toID)]; ok {
		return domain.FriendRequest{}, domain.ErrAlreadyFriends
	}
	if s.pendingLocked(fromID, toID) != nil {
		return domain.FriendRequest{}, domain.ErrRequestExists
	}

	row := &requestRow{
		FriendRequest: domain.FriendRequest{
			ID:         newID(),
			FromUserID: fromID,
			ToUserID:   toID,
			Status:     domain.FriendRequestPending,
			CreatedAt:  when,
			UpdatedAt:  when,
		},
		seq: s.next(),
	}
	if reverse := s.pendingLocked(toID, fromID); reverse != nil {
		t := when
		reverse.Status = domain.FriendRequestAccepted
		reverse.UpdatedAt = when
		reverse.ResolvedAt = &t
		row.Status = domain.FriendRequestAccepted
		row.ResolvedAt = &t
		s.edges[edgeKey(fromID, toID)] = when
	}
	s.requests[row.ID] = row

	fr := row.FriendRequest
	fr.User = s.summaryOf(toID)
	return fr, nil
}

func (s *Store) Respond(_ context.Context, fromID, toID string, action domain.FriendAction, when time.Time) (domain.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.pendingLocked(fromID, toID)
	if r == nil {
		return domain.FriendRequest{}, domain.ErrNotFound
	}
	t := when
	switch action {
	case domain.FriendActionAccept:
		r.Status = domain.FriendRequestAccepted
		s.edges[edgeKey(fromID, toID)] = when
	case domain.FriendActionDecline:
		r.Status = domain.FriendRequestDeclined
	default:
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"action": "must be accept or decline"})
	}
	r.UpdatedAt = when
	r.ResolvedAt = &t

	fr := r.FriendRequest
	fr.User = s.summaryOf(fromID)
	return fr, nil
}

func (s *Store) Cancel(_ context.Context, fromID, toID string, when time.Time) (domain.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.pendingLocked(fromID, toID)
	if r == nil {
		return domain.FriendRequest{}, domain.ErrNotFound
	}
	t := when
	r.Status = domain.FriendRequestCancelled
	r.UpdatedAt = when
	r.ResolvedAt = &t

	fr := r.FriendRequest
	fr.User = s.summaryOf(toID)
	return fr, nil
}

func (s *Store) HasPending(_ context.Context, fromID, toID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked(fromID, toID) != nil, nil
}

func (s *Store) AreFriends(_ context.Context, userA, userB string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[edgeKey(userA, userB)]
	return ok, nil
}

func (s *Store) RemoveFriend(_ context.Context, userA, userB string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(userA, userB)
	if _, ok := s.edges[key]; !ok {
		return false, nil
	}
	delete(s.edges, key)
	return true, nil
}

func (s *Store) ListFriends(_ context.Context, userID, search string) ([]domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.UserSummary{}
	for k := range s.edges {
		var other string
		switch userID {
		case k[0]:
			other = k[1]
		case k[1]:
			other = k[0]
		default:
			continue
		}
		sum := s.summaryOf(other)
		if search != "" && !containsFold(sum.Email, search) {
			continue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) ListIncoming(_ context.Context, userID string) ([]domain.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequestsLocked(func(r *requestRow) (string, bool) {
		return r.FromUserID, r.ToUserID == userID
	}), nil
}

func (s *Store) ListOutgoing(_ context.Context, userID string) ([]domain.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequestsLocked(func(r *requestRow) (string, bool) {
		return r.ToUserID, r.FromUserID == userID
	}), nil
}

// listRequestsLocked returns pending requests accepted by match, most
// recently updated first. match also names the counterparty.
func (s *Store) listRequestsLocked(match func(*requestRow) (string, bool)) []domain.FriendRequest {
	rows := make([]*requestRow, 0)
	for _, r := range s.requests {
		if r.Status != domain.FriendRequestPending {
			continue
		}
		if _, ok := match(r); ok {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]domain.FriendRequest, 0, len(rows))
	for _, r := range rows {
		other, _ := match(r)
		fr := r.FriendRequest
		fr.User = s.summaryOf(other)
		out = append(out, fr)
	}
	return out
}

// GetRequest returns a request in any status, with User set to the recipient.
func (s *Store) GetRequest(_ context.Context, id string) (domain.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return domain.FriendRequest{}, domain.ErrNotFound
	}
	fr := r.FriendRequest
	fr.User = s.summaryOf(r.ToUserID)
	return fr, nil
}

func (s *Store) CountIncoming(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.requests {
		if r.ToUserID == userID && r.Status == domain.FriendRequestPending {
			n++
		}
	}
	return n, nil
}
