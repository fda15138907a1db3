package memory

import (
	"context"
	"sort"
	"time"

	"ourpainthub/internal/domain"
)

func (s *Store) ListArticles(_ context.Context, kind domain.ArticleKind) ([]domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*articleRow, 0)
	for _, a := range s.articles {
		if a.Kind == kind {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]domain.Article, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.Article)
	}
	return out, nil
}

func (s *Store) GetArticle(_ context.Context, id string) (domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	return a.Article, nil
}

func (s *Store) CreateArticle(_ context.Context, a domain.Article) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = newID()
	s.articles[a.ID] = &articleRow{Article: a, seq: s.next()}
	return a, nil
}

func (s *Store) UpdateArticle(_ context.Context, a domain.Article) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.articles[a.ID]
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	row.Title, row.Content, row.Category, row.UpdatedAt = a.Title, a.Content, a.Category, a.UpdatedAt
	return row.Article, nil
}

func (s *Store) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.articles, id)
	return nil
}

func (s *Store) ListReleases(_ context.Context) ([]domain.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*releaseRow, 0, len(s.releases))
	for _, r := range s.releases {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]domain.Release, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Release)
	}
	return out, nil
}

func (s *Store) GetRelease(_ context.Context, id string) (domain.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.releases[id]
	if !ok {
		return domain.Release{}, domain.ErrNotFound
	}
	return r.Release, nil
}

func (s *Store) GetReleasePayload(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.releases[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBytes(r.payload), nil
}

func (s *Store) CreateRelease(_ context.Context, r domain.Release, payload []byte) (domain.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = newID()
	r.SizeBytes = int64(len(payload))
	s.releases[r.ID] = &releaseRow{Release: r, payload: cloneBytes(payload), seq: s.next()}
	return r, nil
}

func (s *Store) DeleteRelease(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.releases[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.releases, id)
	return nil
}

// ListQuestions puts unanswered questions first, each group newest first.
func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*questionRow, 0, len(s.questions))
	for _, q := range s.questions {
		rows = append(rows, q)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Answered != rows[j].Answered {
			return !rows[i].Answered
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]domain.Question, 0, len(rows))
	for _, q := range rows {
		out = append(out, q.Question)
	}
	return out, nil
}

func (s *Store) CreateQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = newID()
	q.Answered = false
	s.questions[q.ID] = &questionRow{Question: q, seq: s.next()}
	return q, nil
}

func (s *Store) AnswerQuestion(_ context.Context, id, adminID, answer string, when time.Time) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrNotFound
	}
	t := when
	q.Answered = true
	q.Answer = answer
	q.AdminID = adminID
	q.AdminEmail = s.emailOf(adminID)
	q.AnsweredAt = &t
	return q.Question, nil
}

func (s *Store) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.questions, id)
	return nil
}
