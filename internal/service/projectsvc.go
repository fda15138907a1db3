package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"ourpainthub/internal/domain"
)

const (
	DefaultMaxProjectBytes = 100 << 20
	maxProjectNameLen      = 255
	maxDescriptionLen      = 5000
	maxCommentLen          = 1000
	maxShareRecipients     = 50
)

type ProjectsStore interface {
	// CreateProject stores the project and its first version in one step.
	CreateProject(ctx context.Context, p domain.Project, payload []byte) (domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	GetPayload(ctx context.Context, id string) ([]byte, error)
	// UpdateProject applies c, bumps the version counter and appends a
	// version row, all atomically. A stale ExpectedVersion yields
	// domain.ErrVersionConflict.
	UpdateProject(ctx context.Context, c domain.ProjectChange) (domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListOwned(ctx context.Context, ownerID string) ([]domain.Project, error)
	ListVersions(ctx context.Context, projectID string) ([]domain.ProjectVersion, error)
}

type SharesStore interface {
	CreateShare(ctx context.Context, projectID, senderID, recipientID, comment string, when time.Time) (domain.SharedProject, error)
	GetShare(ctx context.Context, id string) (domain.SharedProject, error)
	DeleteShare(ctx context.Context, id string) error
	HasShare(ctx context.Context, projectID, recipientID string) (bool, error)
	ListReceived(ctx context.Context, recipientID string) ([]domain.SharedProject, error)
}

type ProjectSharedNotification struct {
	SharedID    string
	ProjectID   string
	ProjectName string
	SenderID    string
	RecipientID string
	Comment     string
}

type ProjectShareNotifier interface {
	NotifyProjectShared(ctx context.Context, n ProjectSharedNotification) error
}

type NewProject struct {
	Name        string
	FileName    string
	Description string
	Private     bool
	Payload     []byte
}

// ProjectEdit is an owner's update request. Payload replaces the file when
// non-nil; FileName, if given with it, may change the type.
type ProjectEdit struct {
	Name            *string
	Description     *string
	Private         *bool
	FileName        string
	Payload         []byte
	Note            string
	ExpectedVersion *int
}

type ProjectsService struct {
	Projects ProjectsStore
	Shares   SharesStore
	Users    UserLookup
	Friends  FriendChecker
	Notifier ProjectShareNotifier
	Audit    AuditRecorder
	Logger   *slog.Logger
	MaxBytes int64
	Now      func() time.Time
}

func (s *ProjectsService) now() time.Time {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC()
}

func (s *ProjectsService) maxBytes() int64 {
	if s.MaxBytes <= 0 {
		return DefaultMaxProjectBytes
	}
	return s.MaxBytes
}

func (s *ProjectsService) Create(ctx context.Context, ownerID string, in NewProject) (domain.Project, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(in.Name)
	if reason := checkProjectName(name); reason != "" {
		fields["project_name"] = reason
	}
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		fields["description"] = "too long"
	}
	typ, ok := domain.ProjectTypeFromFileName(in.FileName)
	if !ok {
		fields["file"] = "unsupported file type"
	}
	if len(in.Payload) == 0 {
		fields["file"] = "required"
	}
	if len(fields) > 0 {
		return domain.Project{}, domain.NewValidationError(fields)
	}
	if int64(len(in.Payload)) > s.maxBytes() {
		return domain.Project{}, domain.ErrPayloadTooLarge
	}

	now := s.now()
	p, err := s.Projects.CreateProject(ctx, domain.Project{
		OwnerID:     ownerID,
		Name:        name,
		Type:        typ,
		SizeBytes:   int64(len(in.Payload)),
		Description: description,
		Private:     in.Private,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, in.Payload)
	if err != nil {
		return domain.Project{}, err
	}
	record(ctx, s.Audit, ownerID, domain.AuditAdd, "project", p.ID)
	return p, nil
}

func (s *ProjectsService) Update(ctx context.Context, requesterID, projectID string, in ProjectEdit) (domain.Project, error) {
	p, err := s.ownedProject(ctx, requesterID, projectID)
	if err != nil {
		return domain.Project{}, err
	}

	change := domain.ProjectChange{
		ProjectID:       p.ID,
		ChangerID:       requesterID,
		Private:         in.Private,
		Note:            strings.TrimSpace(in.Note),
		ExpectedVersion: in.ExpectedVersion,
		When:            s.now(),
	}
	fields := map[string]string{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if reason := checkProjectName(name); reason != "" {
			fields["project_name"] = reason
		}
		change.Name = &name
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if utf8.RuneCountInString(description) > maxDescriptionLen {
			fields["description"] = "too long"
		}
		change.Description = &description
	}
	if utf8.RuneCountInString(change.Note) > maxCommentLen {
		fields["change_note"] = "too long"
	}
	if in.Payload != nil {
		if len(in.Payload) == 0 {
			fields["file"] = "must not be empty"
		}
		if strings.TrimSpace(in.FileName) != "" {
			typ, ok := domain.ProjectTypeFromFileName(in.FileName)
			if !ok {
				fields["file"] = "unsupported file type"
			}
			change.Type = &typ
		}
		change.Payload = in.Payload
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion < 1 {
		fields["expected_version"] = "must be >= 1"
	}
	if change.Empty() {
		fields["project"] = "no changes"
	}
	if len(fields) > 0 {
		return domain.Project{}, domain.NewValidationError(fields)
	}
	if int64(len(in.Payload)) > s.maxBytes() {
		return domain.Project{}, domain.ErrPayloadTooLarge
	}

	updated, err := s.Projects.UpdateProject(ctx, change)
	if err != nil {
		return domain.Project{}, err
	}
	record(ctx, s.Audit, requesterID, domain.AuditChange, "project", p.ID)
	return updated, nil
}

// Delete removes the project together with its versions and every share of it.
func (s *ProjectsService) Delete(ctx context.Context, requesterID, projectID string) error {
	p, err := s.ownedProject(ctx, requesterID, projectID)
	if err != nil {
		return err
	}
	if err := s.Projects.DeleteProject(ctx, p.ID); err != nil {
		return err
	}
	record(ctx, s.Audit, requesterID, domain.AuditDelete, "project", p.ID)
	return nil
}

func (s *ProjectsService) Download(ctx context.Context, requesterID, projectID string) (domain.Project, []byte, error) {
	p, err := s.viewableProject(ctx, requesterID, projectID)
	if err != nil {
		return domain.Project{}, nil, err
	}
	payload, err := s.Projects.GetPayload(ctx, p.ID)
	if err != nil {
		return domain.Project{}, nil, err
	}
	return p, payload, nil
}

func (s *ProjectsService) ListVersions(ctx context.Context, viewerID, projectID string) ([]domain.ProjectVersion, error) {
	p, err := s.viewableProject(ctx, viewerID, projectID)
	if err != nil {
		return nil, err
	}
	out, err := s.Projects.ListVersions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ProjectVersion{}
	}
	return out, nil
}

// Share hands the project to each recipient independently. The returned error
// covers only project-level refusals; per-recipient outcomes are in the results.
func (s *ProjectsService) Share(ctx context.Context, senderID, projectID string, recipientIDs []string, comment string) ([]domain.ShareResult, error) {
	recipients := dedupe(recipientIDs)
	comment = strings.TrimSpace(comment)
	fields := map[string]string{}
	if len(recipients) == 0 {
		fields["recipient_ids"] = "required"
	}
	if len(recipients) > maxShareRecipients {
		fields["recipient_ids"] = "too many recipients"
	}
	if utf8.RuneCountInString(comment) > maxCommentLen {
		fields["comment"] = "too long"
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}

	p, err := s.Projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	isOwner := p.OwnerID == senderID
	if !isOwner {
		if p.Private {
			return nil, domain.ErrForbidden
		}
		ok, err := s.CanView(ctx, senderID, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrForbidden
		}
	}

	results := make([]domain.ShareResult, 0, len(recipients))
	for _, rid := range recipients {
		res := domain.ShareResult{RecipientID: rid}
		sp, err := s.shareWith(ctx, p, senderID, rid, comment, isOwner)
		if err != nil {
			res.Err = err
		} else {
			res.SharedID = sp.ID
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *ProjectsService) shareWith(ctx context.Context, p domain.Project, senderID, recipientID, comment string, isOwner bool) (domain.SharedProject, error) {
	switch recipientID {
	case senderID:
		return domain.SharedProject{}, domain.NewValidationError(map[string]string{"recipient_id": "cannot share with yourself"})
	case p.OwnerID:
		return domain.SharedProject{}, domain.NewValidationError(map[string]string{"recipient_id": "recipient owns the project"})
	}
	recipient, err := s.Users.GetUserByID(ctx, recipientID)
	if err != nil {
		return domain.SharedProject{}, err
	}
	if recipient.Status == domain.UserStatusDisabled {
		return domain.SharedProject{}, domain.ErrForbidden
	}
	if !isOwner {
		ok, err := s.Friends.AreFriends(ctx, senderID, recipientID)
		if err != nil {
			return domain.SharedProject{}, err
		}
		if !ok {
			return domain.SharedProject{}, domain.ErrForbidden
		}
	}

	sp, err := s.Shares.CreateShare(ctx, p.ID, senderID, recipientID, comment, s.now())
	if err != nil {
		return domain.SharedProject{}, err
	}
	record(ctx, s.Audit, senderID, domain.AuditAdd, "shared_project", sp.ID)
	s.notify(ctx, ProjectSharedNotification{
		SharedID:    sp.ID,
		ProjectID:   p.ID,
		ProjectName: p.Name,
		SenderID:    senderID,
		RecipientID: recipientID,
		Comment:     comment,
	})
	return sp, nil
}

// DeleteShared removes a received share. Only its recipient may do that; the
// project itself is untouched.
func (s *ProjectsService) DeleteShared(ctx context.Context, requesterID, sharedID string) error {
	sp, err := s.Shares.GetShare(ctx, sharedID)
	if err != nil {
		return err
	}
	if sp.RecipientID != requesterID {
		return domain.ErrForbidden
	}
	if err := s.Shares.DeleteShare(ctx, sp.ID); err != nil {
		return err
	}
	record(ctx, s.Audit, requesterID, domain.AuditDelete, "shared_project", sp.ID)
	return nil
}

func (s *ProjectsService) ListOwned(ctx context.Context, ownerID string) ([]domain.ProjectEntry, error) {
	projects, err := s.Projects.ListOwned(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectEntry, 0, len(projects))
	for _, p := range projects {
		out = append(out, domain.OwnedEntry(p))
	}
	return out, nil
}

func (s *ProjectsService) ListReceived(ctx context.Context, userID string) ([]domain.ProjectEntry, error) {
	shares, err := s.Shares.ListReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectEntry, 0, len(shares))
	for _, sp := range shares {
		out = append(out, domain.ReceivedEntry(sp))
	}
	return out, nil
}

// ListUserProjects shows targetID's projects as viewerID may see them. Only
// friends get an answer; private projects appear only when shared with the viewer.
func (s *ProjectsService) ListUserProjects(ctx context.Context, viewerID, targetID string) ([]domain.ProjectEntry, error) {
	if targetID == viewerID {
		return s.ListOwned(ctx, viewerID)
	}
	if _, err := s.Users.GetUserByID(ctx, targetID); err != nil {
		return nil, err
	}
	ok, err := s.Friends.AreFriends(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrForbidden
	}

	projects, err := s.Projects.ListOwned(ctx, targetID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectEntry, 0, len(projects))
	for _, p := range projects {
		if p.Private {
			shared, err := s.Shares.HasShare(ctx, p.ID, viewerID)
			if err != nil {
				return nil, err
			}
			if !shared {
				continue
			}
		}
		out = append(out, domain.FriendEntry(p))
	}
	return out, nil
}

// CanView: owner, explicit recipient, or a friend of the owner when the
// project is public.
func (s *ProjectsService) CanView(ctx context.Context, viewerID string, p domain.Project) (bool, error) {
	if viewerID == "" {
		return false, nil
	}
	if p.OwnerID == viewerID {
		return true, nil
	}
	shared, err := s.Shares.HasShare(ctx, p.ID, viewerID)
	if err != nil || shared {
		return shared, err
	}
	if p.Private {
		return false, nil
	}
	return s.Friends.AreFriends(ctx, viewerID, p.OwnerID)
}

func (s *ProjectsService) viewableProject(ctx context.Context, viewerID, projectID string) (domain.Project, error) {
	p, err := s.Projects.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	ok, err := s.CanView(ctx, viewerID, p)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, domain.ErrForbidden
	}
	return p, nil
}

func (s *ProjectsService) ownedProject(ctx context.Context, requesterID, projectID string) (domain.Project, error) {
	p, err := s.Projects.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if p.OwnerID != requesterID {
		return domain.Project{}, domain.ErrForbidden
	}
	return p, nil
}

func (s *ProjectsService) notify(ctx context.Context, n ProjectSharedNotification) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.NotifyProjectShared(ctx, n); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("share notification failed", "err", err, "shared_id", n.SharedID)
	}
}

func checkProjectName(name string) string {
	switch {
	case name == "":
		return "required"
	case utf8.RuneCountInString(name) > maxProjectNameLen:
		return "must be 255 characters or less"
	case strings.ContainsAny(name, "/\\\x00"):
		return "contains invalid characters"
	}
	return ""
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// IsShareFailure reports whether any recipient failed.
func IsShareFailure(results []domain.ShareResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
