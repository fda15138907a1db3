package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"ourpainthub/internal/domain"
)

const (
	maxTitleLen        = 200
	maxArticleLen      = 100000
	maxQuestionLen     = 2000
	maxReleaseBytes    = 1 << 30
	maxReleaseFieldLen = 64
)

type ArticlesStore interface {
	ListArticles(ctx context.Context, kind domain.ArticleKind) ([]domain.Article, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	CreateArticle(ctx context.Context, a domain.Article) (domain.Article, error)
	UpdateArticle(ctx context.Context, a domain.Article) (domain.Article, error)
	DeleteArticle(ctx context.Context, id string) error
}

type ReleasesStore interface {
	ListReleases(ctx context.Context) ([]domain.Release, error)
	GetRelease(ctx context.Context, id string) (domain.Release, error)
	GetReleasePayload(ctx context.Context, id string) ([]byte, error)
	CreateRelease(ctx context.Context, r domain.Release, payload []byte) (domain.Release, error)
	DeleteRelease(ctx context.Context, id string) error
}

type QuestionsStore interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	AnswerQuestion(ctx context.Context, id, adminID, answer string, when time.Time) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

type ArticleInput struct {
	Title    string
	Content  string
	Category string
}

type ReleaseInput struct {
	Title    string
	Notes    string
	Version  string
	Platform string
	FileName string
	Payload  []byte
}

// ContentService publishes news, documentation, releases and Q&A. Reading is
// open to every signed-in user; writing is for admins, except asking questions.
type ContentService struct {
	Articles  ArticlesStore
	Releases  ReleasesStore
	Questions QuestionsStore
	Admins    AdminPolicy
	Audit     AuditRecorder
	Now       func() time.Time
}

func (s *ContentService) now() time.Time {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC()
}

func (s *ContentService) ListArticles(ctx context.Context, kind domain.ArticleKind) ([]domain.Article, error) {
	if err := checkArticleKind(kind); err != nil {
		return nil, err
	}
	out, err := s.Articles.ListArticles(ctx, kind)
	if out == nil && err == nil {
		out = []domain.Article{}
	}
	return out, err
}

func (s *ContentService) CreateArticle(ctx context.Context, actor domain.User, kind domain.ArticleKind, in ArticleInput) (domain.Article, error) {
	if err := s.Admins.require(actor); err != nil {
		return domain.Article{}, err
	}
	if err := checkArticleKind(kind); err != nil {
		return domain.Article{}, err
	}
	a, err := buildArticle(kind, in)
	if err != nil {
		return domain.Article{}, err
	}
	a.AuthorID = actor.ID
	a.AuthorEmail = actor.Email
	a.CreatedAt = s.now()

	created, err := s.Articles.CreateArticle(ctx, a)
	if err != nil {
		return domain.Article{}, err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditAdd, string(kind), created.ID)
	return created, nil
}

func (s *ContentService) UpdateArticle(ctx context.Context, actor domain.User, kind domain.ArticleKind, id string, in ArticleInput) (domain.Article, error) {
	if err := s.Admins.require(actor); err != nil {
		return domain.Article{}, err
	}
	existing, err := s.Articles.GetArticle(ctx, id)
	if err != nil {
		return domain.Article{}, err
	}
	if existing.Kind != kind {
		return domain.Article{}, domain.ErrNotFound
	}
	a, err := buildArticle(kind, in)
	if err != nil {
		return domain.Article{}, err
	}
	now := s.now()
	existing.Title, existing.Content, existing.Category = a.Title, a.Content, a.Category
	existing.UpdatedAt = &now

	updated, err := s.Articles.UpdateArticle(ctx, existing)
	if err != nil {
		return domain.Article{}, err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditChange, string(kind), id)
	return updated, nil
}

func (s *ContentService) DeleteArticle(ctx context.Context, actor domain.User, kind domain.ArticleKind, id string) error {
	if err := s.Admins.require(actor); err != nil {
		return err
	}
	existing, err := s.Articles.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	if existing.Kind != kind {
		return domain.ErrNotFound
	}
	if err := s.Articles.DeleteArticle(ctx, id); err != nil {
		return err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditDelete, string(kind), id)
	return nil
}

func (s *ContentService) ListReleases(ctx context.Context) ([]domain.Release, error) {
	out, err := s.Releases.ListReleases(ctx)
	if out == nil && err == nil {
		out = []domain.Release{}
	}
	return out, err
}

func (s *ContentService) DownloadRelease(ctx context.Context, id string) (domain.Release, []byte, error) {
	r, err := s.Releases.GetRelease(ctx, id)
	if err != nil {
		return domain.Release{}, nil, err
	}
	payload, err := s.Releases.GetReleasePayload(ctx, id)
	if err != nil {
		return domain.Release{}, nil, err
	}
	return r, payload, nil
}

func (s *ContentService) CreateRelease(ctx context.Context, actor domain.User, in ReleaseInput) (domain.Release, error) {
	if err := s.Admins.require(actor); err != nil {
		return domain.Release{}, err
	}
	r := domain.Release{
		Title:    strings.TrimSpace(in.Title),
		Notes:    strings.TrimSpace(in.Notes),
		Version:  strings.TrimSpace(in.Version),
		Platform: strings.ToLower(strings.TrimSpace(in.Platform)),
		FileName: filepath.Base(strings.TrimSpace(in.FileName)),
	}
	fields := map[string]string{}
	if r.Title == "" || utf8.RuneCountInString(r.Title) > maxTitleLen {
		fields["title"] = "required, at most 200 characters"
	}
	if r.Version == "" || len(r.Version) > maxReleaseFieldLen {
		fields["version"] = "required"
	}
	if r.Platform == "" || len(r.Platform) > maxReleaseFieldLen {
		fields["platform"] = "required"
	}
	if len(in.Payload) == 0 || r.FileName == "." || r.FileName == "" {
		fields["file"] = "required"
	}
	if len(fields) > 0 {
		return domain.Release{}, domain.NewValidationError(fields)
	}
	if len(in.Payload) > maxReleaseBytes {
		return domain.Release{}, domain.ErrPayloadTooLarge
	}
	r.SizeBytes = int64(len(in.Payload))
	r.AuthorID = actor.ID
	r.AuthorEmail = actor.Email
	r.CreatedAt = s.now()

	created, err := s.Releases.CreateRelease(ctx, r, in.Payload)
	if err != nil {
		return domain.Release{}, err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditAdd, "release", created.ID)
	return created, nil
}

func (s *ContentService) DeleteRelease(ctx context.Context, actor domain.User, id string) error {
	if err := s.Admins.require(actor); err != nil {
		return err
	}
	if err := s.Releases.DeleteRelease(ctx, id); err != nil {
		return err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditDelete, "release", id)
	return nil
}

func (s *ContentService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	out, err := s.Questions.ListQuestions(ctx)
	if out == nil && err == nil {
		out = []domain.Question{}
	}
	return out, err
}

func (s *ContentService) AskQuestion(ctx context.Context, actor domain.User, text string) (domain.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxQuestionLen {
		return domain.Question{}, domain.NewValidationError(map[string]string{"question": "required, at most 2000 characters"})
	}
	q, err := s.Questions.CreateQuestion(ctx, domain.Question{
		Text:      text,
		UserID:    actor.ID,
		UserEmail: actor.Email,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Question{}, err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditAdd, "question", q.ID)
	return q, nil
}

func (s *ContentService) AnswerQuestion(ctx context.Context, actor domain.User, id, answer string) (domain.Question, error) {
	if err := s.Admins.require(actor); err != nil {
		return domain.Question{}, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || utf8.RuneCountInString(answer) > maxQuestionLen {
		return domain.Question{}, domain.NewValidationError(map[string]string{"answer": "required, at most 2000 characters"})
	}
	q, err := s.Questions.AnswerQuestion(ctx, id, actor.ID, answer, s.now())
	if err != nil {
		return domain.Question{}, err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditChange, "question", id)
	return q, nil
}

func (s *ContentService) DeleteQuestion(ctx context.Context, actor domain.User, id string) error {
	if err := s.Admins.require(actor); err != nil {
		return err
	}
	if err := s.Questions.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	record(ctx, s.Audit, actor.ID, domain.AuditDelete, "question", id)
	return nil
}

func checkArticleKind(kind domain.ArticleKind) error {
	switch kind {
	case domain.ArticleNews, domain.ArticleDocumentation:
		return nil
	}
	return domain.NewValidationError(map[string]string{"kind": "must be news or documentation"})
}

func buildArticle(kind domain.ArticleKind, in ArticleInput) (domain.Article, error) {
	a := domain.Article{
		Kind:     kind,
		Title:    strings.TrimSpace(in.Title),
		Content:  strings.TrimSpace(in.Content),
		Category: strings.TrimSpace(in.Category),
	}
	fields := map[string]string{}
	if a.Title == "" || utf8.RuneCountInString(a.Title) > maxTitleLen {
		fields["title"] = "required, at most 200 characters"
	}
	if a.Content == "" || utf8.RuneCountInString(a.Content) > maxArticleLen {
		fields["content"] = "required"
	}
	switch kind {
	case domain.ArticleDocumentation:
		if a.Category == "" || utf8.RuneCountInString(a.Category) > maxTitleLen {
			fields["category"] = "required"
		}
	default:
		a.Category = ""
	}
	if len(fields) > 0 {
		return domain.Article{}, domain.NewValidationError(fields)
	}
	return a, nil
}
