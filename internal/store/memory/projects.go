package memory

import (
	"context"
	"sort"
	"time"

	"ourpainthub/internal/domain"
)

func (s *Store) projectLocked(row *projectRow) domain.Project {
	p := row.Project
	p.OwnerEmail = s.emailOf(p.OwnerID)
	return p
}

func (s *Store) CreateProject(_ context.Context, p domain.Project, payload []byte) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.OwnerID]; !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	p.ID = newID()
	p.Version = 1
	p.SizeBytes = int64(len(payload))
	row := &projectRow{Project: p, payload: cloneBytes(payload), seq: s.next()}
	s.projects[p.ID] = row
	s.versions[p.ID] = []domain.ProjectVersion{{
		ID:           newID(),
		ProjectID:    p.ID,
		Version:      1,
		ChangerID:    p.OwnerID,
		ChangerEmail: s.emailOf(p.OwnerID),
		Description:  p.Description,
		CreatedAt:    p.CreatedAt,
	}}
	return s.projectLocked(row), nil
}

func (s *Store) GetProject(_ context.Context, id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.projects[id]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return s.projectLocked(row), nil
}

func (s *Store) GetPayload(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBytes(row.payload), nil
}

func (s *Store) UpdateProject(_ context.Context, c domain.ProjectChange) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.projects[c.ProjectID]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	if c.ExpectedVersion != nil && *c.ExpectedVersion != row.Version {
		return domain.Project{}, domain.ErrVersionConflict
	}
	if c.Name != nil {
		row.Name = *c.Name
	}
	if c.Description != nil {
		row.Description = *c.Description
	}
	if c.Private != nil {
		row.Private = *c.Private
	}
	if c.Type != nil {
		row.Type = *c.Type
	}
	if c.Payload != nil {
		row.payload = cloneBytes(c.Payload)
		row.SizeBytes = int64(len(c.Payload))
	}
	row.Version++
	row.UpdatedAt = c.When
	s.versions[row.ID] = append(s.versions[row.ID], domain.ProjectVersion{
		ID:           newID(),
		ProjectID:    row.ID,
		Version:      row.Version,
		ChangerID:    c.ChangerID,
		ChangerEmail: s.emailOf(c.ChangerID),
		Description:  c.Note,
		CreatedAt:    c.When,
	})
	return s.projectLocked(row), nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.projects, id)
	delete(s.versions, id)
	for sid, sh := range s.shares {
		if sh.ProjectID == id {
			delete(s.shares, sid)
		}
	}
	return nil
}

// ListOwned returns the owner's projects, most recently updated first.
func (s *Store) ListOwned(_ context.Context, ownerID string) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*projectRow, 0)
	for _, row := range s.projects {
		if row.OwnerID == ownerID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.projectLocked(row))
	}
	return out, nil
}

func (s *Store) ListVersions(_ context.Context, projectID string) ([]domain.ProjectVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	versions := s.versions[projectID]
	out := make([]domain.ProjectVersion, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
	}
	return out, nil
}

func (s *Store) shareLocked(row *shareRow) domain.SharedProject {
	sp := row.SharedProject
	sp.SenderEmail = s.emailOf(sp.SenderID)
	if p, ok := s.projects[sp.ProjectID]; ok {
		sp.Project = s.projectLocked(p)
	}
	return sp
}

func (s *Store) CreateShare(_ context.Context, projectID, senderID, recipientID, comment string, when time.Time) (domain.SharedProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return domain.SharedProject{}, domain.ErrNotFound
	}
	if _, ok := s.users[recipientID]; !ok {
		return domain.SharedProject{}, domain.ErrNotFound
	}
	for _, sh := range s.shares {
		if sh.ProjectID == projectID && sh.RecipientID == recipientID {
			return domain.SharedProject{}, domain.ErrAlreadyShared
		}
	}
	row := &shareRow{
		SharedProject: domain.SharedProject{
			ID:          newID(),
			ProjectID:   projectID,
			SenderID:    senderID,
			RecipientID: recipientID,
			Comment:     comment,
			CreatedAt:   when,
		},
		seq: s.next(),
	}
	s.shares[row.ID] = row
	return s.shareLocked(row), nil
}

func (s *Store) GetShare(_ context.Context, id string) (domain.SharedProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.shares[id]
	if !ok {
		return domain.SharedProject{}, domain.ErrNotFound
	}
	return s.shareLocked(row), nil
}

func (s *Store) DeleteShare(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shares[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.shares, id)
	return nil
}

func (s *Store) HasShare(_ context.Context, projectID, recipientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sh := range s.shares {
		if sh.ProjectID == projectID && sh.RecipientID == recipientID {
			return true, nil
		}
	}
	return false, nil
}

// ListReceived returns shares addressed to recipientID, newest first.
func (s *Store) ListReceived(_ context.Context, recipientID string) ([]domain.SharedProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*shareRow, 0)
	for _, sh := range s.shares {
		if sh.RecipientID == recipientID {
			rows = append(rows, sh)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]domain.SharedProject, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shareLocked(row))
	}
	return out, nil
}
