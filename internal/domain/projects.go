package domain

import (
	"path"
	"strings"
	"time"
)

type ProjectType string

const (
	ProjectTypeOurP ProjectType = "ourp"
	ProjectTypeJSON ProjectType = "json"
	ProjectTypePDF  ProjectType = "pdf"
	ProjectTypeTIFF ProjectType = "tiff"
	ProjectTypeJPG  ProjectType = "jpg"
	ProjectTypeJPEG ProjectType = "jpeg"
	ProjectTypeMD   ProjectType = "md"
	ProjectTypeTXT  ProjectType = "txt"
	ProjectTypePNG  ProjectType = "png"
	ProjectTypeSVG  ProjectType = "svg"
	ProjectTypeBMP  ProjectType = "bmp"
)

var projectContentTypes = map[ProjectType]string{
	ProjectTypeOurP: "application/octet-stream",
	ProjectTypeJSON: "application/json",
	ProjectTypePDF:  "application/pdf",
	ProjectTypeTIFF: "image/tiff",
	ProjectTypeJPG:  "image/jpeg",
	ProjectTypeJPEG: "image/jpeg",
	ProjectTypeMD:   "text/markdown; charset=utf-8",
	ProjectTypeTXT:  "text/plain; charset=utf-8",
	ProjectTypePNG:  "image/png",
	ProjectTypeSVG:  "image/svg+xml",
	ProjectTypeBMP:  "image/bmp",
}

// ProjectTypeFromFileName takes the type from the file extension. Files
// without an extension are treated as txt.
func ProjectTypeFromFileName(name string) (ProjectType, bool) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.TrimSpace(name))), ".")
	if ext == "" {
		return ProjectTypeTXT, true
	}
	t := ProjectType(ext)
	_, ok := projectContentTypes[t]
	return t, ok
}

func (t ProjectType) ContentType() string {
	if ct, ok := projectContentTypes[t]; ok {
		return ct
	}
	return "application/octet-stream"
}

type Project struct {
	ID          string
	OwnerID     string
	OwnerEmail  string
	Name        string
	Type        ProjectType
	SizeBytes   int64
	Description string
	Private     bool
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileName is the name a download is served under.
func (p Project) FileName() string {
	return p.Name + "." + string(p.Type)
}

// WeightMB is the payload size in megabytes, rounded to two decimals.
func (p Project) WeightMB() float64 {
	mb := float64(p.SizeBytes) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}

// ProjectChange describes one update. Nil fields are left as they are.
type ProjectChange struct {
	ProjectID       string
	ChangerID       string
	Name            *string
	Description     *string
	Private         *bool
	Type            *ProjectType
	Payload         []byte
	Note            string
	ExpectedVersion *int
	When            time.Time
}

func (c ProjectChange) Empty() bool {
	return c.Name == nil && c.Description == nil && c.Private == nil && c.Payload == nil
}

type ProjectVersion struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Version      int       `json:"version"`
	ChangerID    string    `json:"changer_id"`
	ChangerEmail string    `json:"changer_email"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type SharedProject struct {
	ID          string
	ProjectID   string
	SenderID    string
	SenderEmail string
	RecipientID string
	Comment     string
	CreatedAt   time.Time
	Project     Project
}

type EntryKind string

const (
	EntryOwned    EntryKind = "owned"
	EntryReceived EntryKind = "received"
	EntryFriend   EntryKind = "friend"
)

type Capabilities struct {
	Download bool `json:"download"`
	Versions bool `json:"versions"`
	Edit     bool `json:"edit"`
	Delete   bool `json:"delete"`
	Share    bool `json:"share"`
}

// ProjectEntry is a project as it appears in a listing: owned by the viewer,
// received through a share, or visible because the owner is a friend.
type ProjectEntry struct {
	Kind         EntryKind
	Project      Project
	Share        *SharedProject
	Capabilities Capabilities
}

func OwnedEntry(p Project) ProjectEntry {
	return ProjectEntry{
		Kind:    EntryOwned,
		Project: p,
		Capabilities: Capabilities{
			Download: true,
			Versions: true,
			Edit:     true,
			Delete:   true,
			Share:    true,
		},
	}
}

func ReceivedEntry(sp SharedProject) ProjectEntry {
	share := sp
	return ProjectEntry{
		Kind:    EntryReceived,
		Project: sp.Project,
		Share:   &share,
		Capabilities: Capabilities{
			Download: true,
			Versions: true,
		},
	}
}

func FriendEntry(p Project) ProjectEntry {
	return ProjectEntry{
		Kind:         EntryFriend,
		Project:      p,
		Capabilities: Capabilities{Download: true, Versions: true},
	}
}

type ShareResult struct {
	RecipientID string
	SharedID    string
	Err         error
}
