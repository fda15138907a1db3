package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

// multipartMemory is how much of a multipart body is held in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

type projectEntryResponse struct {
	Kind        domain.EntryKind    `json:"kind"`
	ProjectID   string              `json:"project_id"`
	ProjectName string              `json:"project_name"`
	FileType    domain.ProjectType  `json:"file_type"`
	FileName    string              `json:"file_name"`
	SizeBytes   int64               `json:"size_bytes"`
	WeightMB    float64             `json:"weight_mb"`
	Description string              `json:"description"`
	Private     bool                `json:"private"`
	Version     int                 `json:"version"`
	OwnerID     string              `json:"owner_id"`
	OwnerEmail  string              `json:"owner_email"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
	SharedID    string              `json:"shared_id,omitempty"`
	SenderEmail string              `json:"sender_email,omitempty"`
	Comment     string              `json:"comment,omitempty"`
	SharedAt    *string             `json:"shared_at,omitempty"`
	Can         domain.Capabilities `json:"capabilities"`
}

func entryResponse(e domain.ProjectEntry) projectEntryResponse {
	p := e.Project
	resp := projectEntryResponse{
		Kind:        e.Kind,
		ProjectID:   p.ID,
		ProjectName: p.Name,
		FileType:    p.Type,
		FileName:    p.FileName(),
		SizeBytes:   p.SizeBytes,
		WeightMB:    p.WeightMB(),
		Description: p.Description,
		Private:     p.Private,
		Version:     p.Version,
		OwnerID:     p.OwnerID,
		OwnerEmail:  p.OwnerEmail,
		CreatedAt:   formatMillis(p.CreatedAt),
		UpdatedAt:   formatMillis(p.UpdatedAt),
		Can:         e.Capabilities,
	}
	if e.Share != nil {
		resp.SharedID = e.Share.ID
		resp.SenderEmail = e.Share.SenderEmail
		resp.Comment = e.Share.Comment
		resp.SharedAt = formatMillisPtr(&e.Share.CreatedAt)
	}
	return resp
}

func writeEntries(w http.ResponseWriter, entries []domain.ProjectEntry) {
	out := make([]projectEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse(e))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleProjectsOwned(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	entries, err := a.projectsSvc.ListOwned(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeEntries(w, entries)
}

func (a *api) handleProjectsReceived(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	entries, err := a.projectsSvc.ListReceived(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeEntries(w, entries)
}

// parseUpload bounds and parses a multipart body. It answers the request
// itself on failure.
func parseUpload(w http.ResponseWriter, r *http.Request, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteDomainError(w, domain.ErrPayloadTooLarge)
			return false
		}
		WriteError(w, http.StatusBadRequest, "bad_multipart", "invalid multipart form")
		return false
	}
	return true
}

// formFile reads the named file part. A missing part is not an error.
func formFile(r *http.Request, name string) (payload []byte, fileName string, err error) {
	f, hdr, err := r.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer f.Close()
	payload, err = io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, hdr.Filename, nil
}

func parseFormBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no":
		return false, true
	}
	return false, false
}

func (a *api) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	if !parseUpload(w, r, a.maxProjectBytes) {
		return
	}

	payload, fileName, err := formFile(r, "file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_multipart", "could not read file")
		return
	}
	private := false
	if raw := r.FormValue("private"); raw != "" {
		v, ok := parseFormBool(raw)
		if !ok {
			WriteDomainError(w, domain.NewValidationError(map[string]string{"private": "must be a boolean"}))
			return
		}
		private = v
	}

	p, err := a.projectsSvc.Create(r.Context(), u.ID, service.NewProject{
		Name:        r.FormValue("project_name"),
		FileName:    fileName,
		Description: r.FormValue("description"),
		Private:     private,
		Payload:     payload,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, entryResponse(domain.OwnedEntry(p)))
}

type projectChangeRequest struct {
	ProjectName     *string `json:"project_name"`
	Description     *string `json:"description"`
	Private         *bool   `json:"private"`
	ChangeNote      string  `json:"change_note"`
	ExpectedVersion *int    `json:"expected_version"`
}

// handleProjectChange accepts JSON for metadata edits and multipart when a new
// file is uploaded.
func (a *api) handleProjectChange(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var edit service.ProjectEdit
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if !parseUpload(w, r, a.maxProjectBytes) {
			return
		}
		var fields map[string]string
		edit, fields = projectEditFromForm(r)
		if len(fields) > 0 {
			WriteDomainError(w, domain.NewValidationError(fields))
			return
		}
		payload, fileName, err := formFile(r, "file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "bad_multipart", "could not read file")
			return
		}
		edit.Payload, edit.FileName = payload, fileName
	} else {
		var req projectChangeRequest
		if err := decodeJSONAllowUnknownFields(w, r, &req, maxJSONBody); err != nil {
			writeBadJSON(w, err)
			return
		}
		edit = service.ProjectEdit{
			Name:            req.ProjectName,
			Description:     req.Description,
			Private:         req.Private,
			Note:            req.ChangeNote,
			ExpectedVersion: req.ExpectedVersion,
		}
	}

	p, err := a.projectsSvc.Update(r.Context(), u.ID, id, edit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entryResponse(domain.OwnedEntry(p)))
}

func projectEditFromForm(r *http.Request) (service.ProjectEdit, map[string]string) {
	var edit service.ProjectEdit
	fields := map[string]string{}
	if vs, ok := r.MultipartForm.Value["project_name"]; ok && len(vs) > 0 {
		edit.Name = &vs[0]
	}
	if vs, ok := r.MultipartForm.Value["description"]; ok && len(vs) > 0 {
		edit.Description = &vs[0]
	}
	if raw := r.FormValue("private"); raw != "" {
		v, ok := parseFormBool(raw)
		if !ok {
			fields["private"] = "must be a boolean"
		}
		edit.Private = &v
	}
	if raw := strings.TrimSpace(r.FormValue("expected_version")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["expected_version"] = "must be a number"
		}
		edit.ExpectedVersion = &n
	}
	edit.Note = r.FormValue("change_note")
	return edit, fields
}

func (a *api) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := a.projectsSvc.Delete(r.Context(), u.ID, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeAttachment(w http.ResponseWriter, fileName, contentType string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (a *api) handleProjectDownload(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, payload, err := a.projectsSvc.Download(r.Context(), u.ID, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeAttachment(w, p.FileName(), p.Type.ContentType(), payload)
}

type shareRequest struct {
	RecipientIDs []string `json:"recipient_ids"`
	RecipientID  string   `json:"recipient_id"`
	Comment      string   `json:"comment"`
}

type shareResultResponse struct {
	RecipientID string    `json:"recipient_id"`
	SharedID    string    `json:"shared_id,omitempty"`
	Error       *apiError `json:"error,omitempty"`
}

type shareResponse struct {
	ProjectID string                `json:"project_id"`
	Results   []shareResultResponse `json:"results"`
}

func (a *api) handleProjectShare(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req shareRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req, maxJSONBody); err != nil {
		writeBadJSON(w, err)
		return
	}
	recipients := req.RecipientIDs
	if rid := strings.TrimSpace(req.RecipientID); rid != "" {
		recipients = append(recipients, rid)
	}

	results, err := a.projectsSvc.Share(r.Context(), u.ID, id, recipients, req.Comment)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := shareResponse{ProjectID: id, Results: make([]shareResultResponse, 0, len(results))}
	for _, res := range results {
		item := shareResultResponse{RecipientID: res.RecipientID, SharedID: res.SharedID}
		if res.Err != nil {
			code := domain.ErrorCode(res.Err)
			item.Error = &apiError{Code: code, Message: errorMessages[code]}
			if code == "internal_error" {
				a.logger.Error("share project failed", "err", res.Err, "project_id", id, "recipient_id", res.RecipientID)
			}
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusCreated
	if service.IsShareFailure(results) {
		status = http.StatusMultiStatus
	}
	WriteJSON(w, status, resp)
}

func (a *api) handleProjectVersions(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	out, err := a.projectsSvc.ListVersions(r.Context(), u.ID, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleReceivedDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "shared_id")
	if !ok {
		return
	}

	if err := a.projectsSvc.DeleteShared(r.Context(), u.ID, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
