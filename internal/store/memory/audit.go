package memory

import (
	"context"
	"time"

	"ourpainthub/internal/domain"
)

func (s *Store) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = newID()
	s.audit = append(s.audit, entry)
	return nil
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, limit)
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

// UpsertToken binds a device token to userID. A token moves to whoever
// registered it last.
func (s *Store) UpsertToken(_ context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.NotificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[token]; ok {
		t.UserID = userID
		t.Platform = platform
		t.UpdatedAt = when
		return *t, nil
	}
	t := &domain.NotificationToken{
		ID:        newID(),
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		CreatedAt: when,
		UpdatedAt: when,
	}
	s.tokens[token] = t
	return *t, nil
}

func (s *Store) DeleteToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[token]; ok && t.UserID == userID {
		delete(s.tokens, token)
	}
	return nil
}

func (s *Store) ListTokens(_ context.Context, userID string) ([]domain.NotificationToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.NotificationToken{}
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}
