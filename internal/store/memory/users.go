package memory

import (
	"context"
	"sort"
	"time"

	"ourpainthub/internal/domain"
)

func (s *Store) CreateUser(_ context.Context, email, nickname, passwordHash string, isAdmin bool) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	now := time.Now().UTC()
	row := &userRow{
		UserWithPassword: domain.UserWithPassword{
			User: domain.User{
				ID:        newID(),
				Email:     email,
				Nickname:  nickname,
				Status:    domain.UserStatusActive,
				IsAdmin:   isAdmin,
				CreatedAt: now,
				UpdatedAt: now,
			},
			PasswordHash: passwordHash,
		},
		seq: s.next(),
	}
	s.users[row.ID] = row
	s.emails[email] = row.ID
	s.profiles[row.ID] = &profileRow{updatedAt: now}
	return row.User, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	return s.users[id].UserWithPassword, nil
}

func (s *Store) SetLastLogin(_ context.Context, userID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		t := when
		u.LastLoginAt = &t
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Store) SetPasswordHash(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetAdmin(_ context.Context, userID string, isAdmin bool) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.IsAdmin = isAdmin
	u.UpdatedAt = time.Now().UTC()
	return u.User, nil
}

func (s *Store) SetStatus(_ context.Context, userID string, status domain.UserStatus) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	if status == domain.UserStatusDisabled {
		now := time.Now().UTC()
		for _, sess := range s.sessions {
			if sess.UserID == userID && sess.RevokedAt == nil {
				sess.RevokedAt = &now
			}
		}
	}
	return u.User, nil
}

// SearchUsers lists accounts for the admin console, oldest first.
func (s *Store) SearchUsers(_ context.Context, query string, limit, offset int) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*userRow, 0, len(s.users))
	for _, u := range s.users {
		if query == "" || containsFold(u.Email, query) || containsFold(u.Nickname, query) {
			rows = append(rows, u)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := []domain.User{}
	for i := offset; i < len(rows) && len(out) < limit; i++ {
		out = append(out, rows[i].User)
	}
	return out, nil
}

// ListUsers is the directory every signed-in user can browse. Disabled
// accounts are hidden.
func (s *Store) ListUsers(_ context.Context, search, excludeUserID string, limit int) ([]domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.UserSummary{}
	for _, u := range s.users {
		if u.ID == excludeUserID || u.Status != domain.UserStatusActive {
			continue
		}
		if search != "" && !containsFold(u.Email, search) {
			continue
		}
		out = append(out, u.User.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return s.profileLocked(u), nil
}

func (s *Store) SaveProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[p.UserID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	now := time.Now().UTC()
	u.Nickname = p.Nickname
	u.UpdatedAt = now
	s.profiles[p.UserID] = &profileRow{
		bio:         p.Bio,
		dateOfBirth: p.DateOfBirth,
		avatar:      cloneBytes(p.Avatar),
		avatarType:  p.AvatarType,
		updatedAt:   now,
	}
	return s.profileLocked(u), nil
}

func (s *Store) profileLocked(u *userRow) domain.Profile {
	p := domain.Profile{
		UserID:       u.ID,
		Email:        u.Email,
		Nickname:     u.Nickname,
		FriendsCount: s.friendsCountLocked(u.ID),
	}
	if row, ok := s.profiles[u.ID]; ok {
		p.Bio = row.bio
		p.DateOfBirth = row.dateOfBirth
		p.Avatar = cloneBytes(row.avatar)
		p.AvatarType = row.avatarType
		p.UpdatedAt = row.updatedAt
	}
	return p
}

func (s *Store) CreateSession(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return "", domain.ErrNotFound
	}
	id := newID()
	s.sessions[id] = &domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	return id, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return *sess, nil
}

func (s *Store) RevokeSession(_ context.Context, sessionID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok && sess.RevokedAt == nil {
		t := when
		sess.RevokedAt = &t
	}
	return nil
}

func externalKey(provider domain.ExternalProvider, providerID string) string {
	return string(provider) + "|" + providerID
}

func (s *Store) GetUserByExternalAccount(_ context.Context, provider domain.ExternalProvider, providerID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.external[externalKey(provider, providerID)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u, ok := s.users[acct.UserID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) LinkExternalAccount(_ context.Context, userID string, provider domain.ExternalProvider, providerID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := externalKey(provider, providerID)
	if _, ok := s.external[key]; ok {
		return domain.ErrExternalAccountExists
	}
	for _, acct := range s.external {
		if acct.UserID == userID && acct.Provider == provider {
			return domain.ErrExternalAccountExists
		}
	}
	s.external[key] = domain.ExternalAccount{
		ID:         newID(),
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}
