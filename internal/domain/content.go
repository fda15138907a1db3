package domain

import "time"

type ArticleKind string

const (
	ArticleNews          ArticleKind = "news"
	ArticleDocumentation ArticleKind = "documentation"
)

type Article struct {
	ID          string      `json:"id"`
	Kind        ArticleKind `json:"kind"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Category    string      `json:"category,omitempty"`
	AuthorID    string      `json:"author_id"`
	AuthorEmail string      `json:"author_email"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// Release is a downloadable build of the desktop application.
type Release struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Notes       string    `json:"notes"`
	Version     string    `json:"version"`
	Platform    string    `json:"platform"`
	FileName    string    `json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	AuthorID    string    `json:"author_id"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
}

type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Answered   bool       `json:"answered"`
	Answer     string     `json:"answer,omitempty"`
	UserID     string     `json:"user_id"`
	UserEmail  string     `json:"user_email"`
	AdminID    string     `json:"admin_id,omitempty"`
	AdminEmail string     `json:"admin_email,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}
