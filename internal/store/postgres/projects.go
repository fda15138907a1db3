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

type ProjectsStore struct {
	pool *pgxpool.Pool
}

func NewProjectsStore(pool *pgxpool.Pool) *ProjectsStore {
	return &ProjectsStore{pool: pool}
}

// projectColumns expects projects as p joined to the owner as u.
const projectColumns = `p.id, p.owner_id, u.email, p.name, p.type, p.size_bytes, p.description, p.private, p.version, p.created_at, p.updated_at`

const projectFrom = ` FROM projects p JOIN users u ON u.id = p.owner_id `

func projectDest(p *domain.Project, idUUID, ownerUUID *pgtype.UUID) []any {
	return []any{idUUID, ownerUUID, &p.OwnerEmail, &p.Name, &p.Type, &p.SizeBytes, &p.Description, &p.Private, &p.Version, &p.CreatedAt, &p.UpdatedAt}
}

func scanProject(row pgx.Row) (domain.Project, error) {
	var (
		p                 domain.Project
		idUUID, ownerUUID pgtype.UUID
	)
	if err := row.Scan(projectDest(&p, &idUUID, &ownerUUID)...); err != nil {
		return domain.Project{}, err
	}
	p.ID = uuidOrEmpty(idUUID)
	p.OwnerID = uuidOrEmpty(ownerUUID)
	return p, nil
}

func getProject(ctx context.Context, db querier, id string) (domain.Project, error) {
	return scanProject(db.QueryRow(ctx, `SELECT `+projectColumns+projectFrom+`WHERE p.id = $1`, id))
}

// CreateProject stores the project and its first version in one transaction.
func (s *ProjectsStore) CreateProject(ctx context.Context, p domain.Project, payload []byte) (domain.Project, error) {
	const insertProject = `
		INSERT INTO projects (owner_id, name, type, size_bytes, description, private, payload, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)
		RETURNING id
	`
	const insertVersion = `
		INSERT INTO project_versions (project_id, version, changer_id, description, created_at)
		VALUES ($1, 1, $2, $3, $4)
	`

	var out domain.Project
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var idUUID pgtype.UUID
		err := tx.QueryRow(ctx, insertProject,
			p.OwnerID, p.Name, string(p.Type), int64(len(payload)), p.Description, p.Private, payload, p.CreatedAt,
		).Scan(&idUUID)
		if err != nil {
			return err
		}
		id := uuidOrEmpty(idUUID)
		if _, err := tx.Exec(ctx, insertVersion, id, p.OwnerID, p.Description, p.CreatedAt); err != nil {
			return err
		}
		out, err = getProject(ctx, tx, id)
		return err
	})
	if err != nil {
		if code, _ := pgCode(err); code == codeForeignKeyViolation {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return out, nil
}

func (s *ProjectsStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := getProject(ctx, s.pool, id)
	if err != nil {
		if isMissing(err) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *ProjectsStore) GetPayload(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	if err := s.pool.QueryRow(ctx, `SELECT payload FROM projects WHERE id = $1`, id).Scan(&payload); err != nil {
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get project payload: %w", err)
	}
	return payload, nil
}

// UpdateProject applies c, bumps the version and appends a version row. With
// ExpectedVersion set the update only matches that version.
func (s *ProjectsStore) UpdateProject(ctx context.Context, c domain.ProjectChange) (domain.Project, error) {
	const update = `
		UPDATE projects SET
			name        = coalesce($2, name),
			description = coalesce($3, description),
			private     = coalesce($4, private),
			type        = coalesce($5, type),
			payload     = coalesce($6::bytea, payload),
			size_bytes  = CASE WHEN $6::bytea IS NULL THEN size_bytes ELSE octet_length($6::bytea) END,
			version     = version + 1,
			updated_at  = $7
		WHERE id = $1 AND ($8::int IS NULL OR version = $8)
		RETURNING version
	`
	const insertVersion = `
		INSERT INTO project_versions (project_id, version, changer_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	var typ *string
	if c.Type != nil {
		t := string(*c.Type)
		typ = &t
	}

	var out domain.Project
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var version int
		err := tx.QueryRow(ctx, update, c.ProjectID, c.Name, c.Description, c.Private, typ, c.Payload, c.When, c.ExpectedVersion).Scan(&version)
		if err != nil {
			if !isMissing(err) || c.ExpectedVersion == nil {
				return err
			}
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, c.ProjectID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return domain.ErrVersionConflict
			}
			return domain.ErrNotFound
		}
		if _, err := tx.Exec(ctx, insertVersion, c.ProjectID, version, c.ChangerID, c.Note, c.When); err != nil {
			return err
		}
		out, err = getProject(ctx, tx, c.ProjectID)
		return err
	})
	if err != nil {
		if isMissing(err) {
			return domain.Project{}, domain.ErrNotFound
		}
		if isDomainError(err) {
			return domain.Project{}, err
		}
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	return out, nil
}

// DeleteProject removes the project; versions and shares go with it by cascade.
func (s *ProjectsStore) DeleteProject(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		if isMissing(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ProjectsStore) ListOwned(ctx context.Context, ownerID string) ([]domain.Project, error) {
	q := `SELECT ` + projectColumns + projectFrom + `WHERE p.owner_id = $1 ORDER BY p.updated_at DESC, p.created_at DESC`
	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	return out, nil
}

func (s *ProjectsStore) ListVersions(ctx context.Context, projectID string) ([]domain.ProjectVersion, error) {
	const q = `
		SELECT v.id, v.project_id, v.version, v.changer_id, coalesce(u.email, ''), v.description, v.created_at
		FROM project_versions v
		LEFT JOIN users u ON u.id = v.changer_id
		WHERE v.project_id = $1
		ORDER BY v.version DESC
	`

	rows, err := s.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project versions: %w", err)
	}
	defer rows.Close()

	out := []domain.ProjectVersion{}
	for rows.Next() {
		var (
			v                            domain.ProjectVersion
			idUUID, projUUID, changerUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &projUUID, &v.Version, &changerUID, &v.ChangerEmail, &v.Description, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project version: %w", err)
		}
		v.ID = uuidOrEmpty(idUUID)
		v.ProjectID = uuidOrEmpty(projUUID)
		v.ChangerID = uuidOrEmpty(changerUID)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list project versions: %w", err)
	}
	return out, nil
}

type SharesStore struct {
	pool *pgxpool.Pool
}

func NewSharesStore(pool *pgxpool.Pool) *SharesStore {
	return &SharesStore{pool: pool}
}

const shareSelect = `
	SELECT s.id, s.project_id, s.sender_id, su.email, s.recipient_id, s.comment, s.created_at, ` + projectColumns + `
	FROM shared_projects s
	JOIN users su ON su.id = s.sender_id
	JOIN projects p ON p.id = s.project_id
	JOIN users u ON u.id = p.owner_id
`

func scanShare(row pgx.Row) (domain.SharedProject, error) {
	var (
		sp                                 domain.SharedProject
		idUUID, projUUID, sender, recipUID pgtype.UUID
		pID, ownerUUID                     pgtype.UUID
	)
	dest := append([]any{&idUUID, &projUUID, &sender, &sp.SenderEmail, &recipUID, &sp.Comment, &sp.CreatedAt},
		projectDest(&sp.Project, &pID, &ownerUUID)...)
	if err := row.Scan(dest...); err != nil {
		return domain.SharedProject{}, err
	}
	sp.ID = uuidOrEmpty(idUUID)
	sp.ProjectID = uuidOrEmpty(projUUID)
	sp.SenderID = uuidOrEmpty(sender)
	sp.RecipientID = uuidOrEmpty(recipUID)
	sp.Project.ID = uuidOrEmpty(pID)
	sp.Project.OwnerID = uuidOrEmpty(ownerUUID)
	return sp, nil
}

func (s *SharesStore) CreateShare(ctx context.Context, projectID, senderID, recipientID, comment string, when time.Time) (domain.SharedProject, error) {
	const q = `
		INSERT INTO shared_projects (project_id, sender_id, recipient_id, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, q, projectID, senderID, recipientID, comment, when).Scan(&idUUID); err != nil {
		switch code, constraint := pgCode(err); {
		case code == codeUniqueViolation && constraint == "shared_projects_recipient_uq":
			return domain.SharedProject{}, domain.ErrAlreadyShared
		case code == codeForeignKeyViolation, isMissing(err):
			return domain.SharedProject{}, domain.ErrNotFound
		}
		return domain.SharedProject{}, fmt.Errorf("create share: %w", err)
	}
	return s.GetShare(ctx, uuidOrEmpty(idUUID))
}

func (s *SharesStore) GetShare(ctx context.Context, id string) (domain.SharedProject, error) {
	sp, err := scanShare(s.pool.QueryRow(ctx, shareSelect+`WHERE s.id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return domain.SharedProject{}, domain.ErrNotFound
		}
		return domain.SharedProject{}, fmt.Errorf("get share: %w", err)
	}
	return sp, nil
}

func (s *SharesStore) DeleteShare(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM shared_projects WHERE id = $1`, id)
	if err != nil {
		if isMissing(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete share: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SharesStore) HasShare(ctx context.Context, projectID, recipientID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM shared_projects WHERE project_id = $1 AND recipient_id = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, projectID, recipientID).Scan(&exists); err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("has share: %w", err)
	}
	return exists, nil
}

func (s *SharesStore) ListReceived(ctx context.Context, recipientID string) ([]domain.SharedProject, error) {
	rows, err := s.pool.Query(ctx, shareSelect+`WHERE s.recipient_id = $1 ORDER BY s.created_at DESC`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list received projects: %w", err)
	}
	defer rows.Close()

	out := []domain.SharedProject{}
	for rows.Next() {
		sp, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list received projects: %w", err)
	}
	return out, nil
}
