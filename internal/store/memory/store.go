// Package memory is a process-local implementation of every service store.
// The server falls back to it when no database DSN is configured.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ourpainthub/internal/domain"
)

type userRow struct {
	domain.UserWithPassword
	seq int64
}

type profileRow struct {
	bio         string
	dateOfBirth *time.Time
	avatar      []byte
	avatarType  string
	updatedAt   time.Time
}

type requestRow struct {
	domain.FriendRequest
	seq int64
}

type projectRow struct {
	domain.Project
	payload []byte
	seq     int64
}

type shareRow struct {
	domain.SharedProject
	seq int64
}

type releaseRow struct {
	domain.Release
	payload []byte
	seq     int64
}

type articleRow struct {
	domain.Article
	seq int64
}

type questionRow struct {
	domain.Question
	seq int64
}

type Store struct {
	mu  sync.RWMutex
	seq int64

	users     map[string]*userRow
	emails    map[string]string
	profiles  map[string]*profileRow
	sessions  map[string]*domain.Session
	external  map[string]domain.ExternalAccount
	requests  map[string]*requestRow
	edges     map[[2]string]time.Time
	projects  map[string]*projectRow
	versions  map[string][]domain.ProjectVersion
	shares    map[string]*shareRow
	articles  map[string]*articleRow
	releases  map[string]*releaseRow
	questions map[string]*questionRow
	audit     []domain.AuditEntry
	tokens    map[string]*domain.NotificationToken
}

func New() *Store {
	return &Store{
		users:     map[string]*userRow{},
		emails:    map[string]string{},
		profiles:  map[string]*profileRow{},
		sessions:  map[string]*domain.Session{},
		external:  map[string]domain.ExternalAccount{},
		requests:  map[string]*requestRow{},
		edges:     map[[2]string]time.Time{},
		projects:  map[string]*projectRow{},
		versions:  map[string][]domain.ProjectVersion{},
		shares:    map[string]*shareRow{},
		articles:  map[string]*articleRow{},
		releases:  map[string]*releaseRow{},
		questions: map[string]*questionRow{},
		tokens:    map[string]*domain.NotificationToken{},
	}
}

// next must be called with mu held for writing.
func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func newID() string {
	return uuid.NewString()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (s *Store) emailOf(userID string) string {
	if u, ok := s.users[userID]; ok {
		return u.Email
	}
	return ""
}

func (s *Store) summaryOf(userID string) domain.UserSummary {
	if u, ok := s.users[userID]; ok {
		return u.User.Summary()
	}
	return domain.UserSummary{ID: userID}
}
