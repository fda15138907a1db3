package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ourpainthub/internal/domain"
)

// deleteRow removes one row by id from table, reporting ErrNotFound when
// nothing matched.
func deleteRow(ctx context.Context, pool *pgxpool.Pool, table, id string) error {
	ct, err := pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		if isMissing(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type ArticlesStore struct {
	pool *pgxpool.Pool
}

func NewArticlesStore(pool *pgxpool.Pool) *ArticlesStore {
	return &ArticlesStore{pool: pool}
}

const articleSelect = `
	SELECT a.id, a.kind, a.title, a.content, a.category, a.author_id, coalesce(u.email, ''), a.created_at, a.updated_at
	FROM articles a
	LEFT JOIN users u ON u.id = a.author_id
`

func scanArticle(row pgx.Row) (domain.Article, error) {
	var (
		a                  domain.Article
		idUUID, authorUUID pgtype.UUID
		updated            pgtype.Timestamptz
	)
	if err := row.Scan(&idUUID, &a.Kind, &a.Title, &a.Content, &a.Category, &authorUUID, &a.AuthorEmail, &a.CreatedAt, &updated); err != nil {
		return domain.Article{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	a.AuthorID = uuidOrEmpty(authorUUID)
	a.UpdatedAt = timestamptzPtr(updated)
	return a, nil
}

func (s *ArticlesStore) ListArticles(ctx context.Context, kind domain.ArticleKind) ([]domain.Article, error) {
	rows, err := s.pool.Query(ctx, articleSelect+`WHERE a.kind = $1 ORDER BY a.created_at DESC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := []domain.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return out, nil
}

func (s *ArticlesStore) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	a, err := scanArticle(s.pool.QueryRow(ctx, articleSelect+`WHERE a.id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

func (s *ArticlesStore) CreateArticle(ctx context.Context, a domain.Article) (domain.Article, error) {
	const q = `
		INSERT INTO articles (kind, title, content, category, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, q, string(a.Kind), a.Title, a.Content, a.Category, nullIfEmpty(a.AuthorID), a.CreatedAt).Scan(&idUUID); err != nil {
		return domain.Article{}, fmt.Errorf("create article: %w", err)
	}
	return s.GetArticle(ctx, uuidOrEmpty(idUUID))
}

func (s *ArticlesStore) UpdateArticle(ctx context.Context, a domain.Article) (domain.Article, error) {
	const q = `
		UPDATE articles
		SET title = $2, content = $3, category = $4, updated_at = $5
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, q, a.ID, a.Title, a.Content, a.Category, a.UpdatedAt)
	if err != nil {
		if isMissing(err) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("update article: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.Article{}, domain.ErrNotFound
	}
	return s.GetArticle(ctx, a.ID)
}

func (s *ArticlesStore) DeleteArticle(ctx context.Context, id string) error {
	return deleteRow(ctx, s.pool, "articles", id)
}

type ReleasesStore struct {
	pool *pgxpool.Pool
}

func NewReleasesStore(pool *pgxpool.Pool) *ReleasesStore {
	return &ReleasesStore{pool: pool}
}

const releaseSelect = `
	SELECT r.id, r.title, r.notes, r.version, r.platform, r.file_name, r.size_bytes, r.author_id, coalesce(u.email, ''), r.created_at
	FROM releases r
	LEFT JOIN users u ON u.id = r.author_id
`

func scanRelease(row pgx.Row) (domain.Release, error) {
	var (
		r                  domain.Release
		idUUID, authorUUID pgtype.UUID
	)
	if err := row.Scan(&idUUID, &r.Title, &r.Notes, &r.Version, &r.Platform, &r.FileName, &r.SizeBytes, &authorUUID, &r.AuthorEmail, &r.CreatedAt); err != nil {
		return domain.Release{}, err
	}
	r.ID = uuidOrEmpty(idUUID)
	r.AuthorID = uuidOrEmpty(authorUUID)
	return r, nil
}

func (s *ReleasesStore) ListReleases(ctx context.Context) ([]domain.Release, error) {
	rows, err := s.pool.Query(ctx, releaseSelect+`ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	out := []domain.Release{}
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	return out, nil
}

func (s *ReleasesStore) GetRelease(ctx context.Context, id string) (domain.Release, error) {
	r, err := scanRelease(s.pool.QueryRow(ctx, releaseSelect+`WHERE r.id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return domain.Release{}, domain.ErrNotFound
		}
		return domain.Release{}, fmt.Errorf("get release: %w", err)
	}
	return r, nil
}

func (s *ReleasesStore) GetReleasePayload(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	if err := s.pool.QueryRow(ctx, `SELECT payload FROM releases WHERE id = $1`, id).Scan(&payload); err != nil {
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get release payload: %w", err)
	}
	return payload, nil
}

func (s *ReleasesStore) CreateRelease(ctx context.Context, r domain.Release, payload []byte) (domain.Release, error) {
	const q = `
		INSERT INTO releases (title, notes, version, platform, file_name, size_bytes, payload, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var idUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q,
		r.Title, r.Notes, r.Version, r.Platform, r.FileName, int64(len(payload)), payload, nullIfEmpty(r.AuthorID), r.CreatedAt,
	).Scan(&idUUID)
	if err != nil {
		return domain.Release{}, fmt.Errorf("create release: %w", err)
	}
	return s.GetRelease(ctx, uuidOrEmpty(idUUID))
}

func (s *ReleasesStore) DeleteRelease(ctx context.Context, id string) error {
	return deleteRow(ctx, s.pool, "releases", id)
}

type QuestionsStore struct {
	pool *pgxpool.Pool
}

func NewQuestionsStore(pool *pgxpool.Pool) *QuestionsStore {
	return &QuestionsStore{pool: pool}
}

const questionSelect = `
	SELECT q.id, q.text, q.answer, q.user_id, coalesce(u.email, ''), q.admin_id, coalesce(a.email, ''), q.created_at, q.answered_at
	FROM questions q
	LEFT JOIN users u ON u.id = q.user_id
	LEFT JOIN users a ON a.id = q.admin_id
`

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q                           domain.Question
		idUUID, userUUID, adminUUID pgtype.UUID
		answer                      pgtype.Text
		answeredAt                  pgtype.Timestamptz
	)
	if err := row.Scan(&idUUID, &q.Text, &answer, &userUUID, &q.UserEmail, &adminUUID, &q.AdminEmail, &q.CreatedAt, &answeredAt); err != nil {
		return domain.Question{}, err
	}
	q.ID = uuidOrEmpty(idUUID)
	q.UserID = uuidOrEmpty(userUUID)
	q.AdminID = uuidOrEmpty(adminUUID)
	q.Answer = textOrEmpty(answer)
	q.Answered = answer.Valid
	q.AnsweredAt = timestamptzPtr(answeredAt)
	return q, nil
}

// ListQuestions returns open questions first, newest first within each group.
func (s *QuestionsStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, questionSelect+`ORDER BY (q.answer IS NOT NULL), q.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	out := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return out, nil
}

func (s *QuestionsStore) getQuestion(ctx context.Context, id string) (domain.Question, error) {
	q, err := scanQuestion(s.pool.QueryRow(ctx, questionSelect+`WHERE q.id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return domain.Question{}, domain.ErrNotFound
		}
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *QuestionsStore) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	const insert = `
		INSERT INTO questions (text, user_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, insert, q.Text, nullIfEmpty(q.UserID), q.CreatedAt).Scan(&idUUID); err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	return s.getQuestion(ctx, uuidOrEmpty(idUUID))
}

// AnswerQuestion sets or replaces the answer.
func (s *QuestionsStore) AnswerQuestion(ctx context.Context, id, adminID, answer string, when time.Time) (domain.Question, error) {
	const q = `
		UPDATE questions
		SET answer = $2, admin_id = $3, answered_at = $4
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, q, id, answer, nullIfEmpty(adminID), when)
	if err != nil {
		if isMissing(err) {
			return domain.Question{}, domain.ErrNotFound
		}
		return domain.Question{}, fmt.Errorf("answer question: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.Question{}, domain.ErrNotFound
	}
	return s.getQuestion(ctx, id)
}

func (s *QuestionsStore) DeleteQuestion(ctx context.Context, id string) error {
	return deleteRow(ctx, s.pool, "questions", id)
}
