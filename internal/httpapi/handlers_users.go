package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"ourpainthub/internal/domain"
)

func (a *api) handleUsersList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	out, err := a.usersSvc.List(r.Context(), u.ID, r.URL.Query().Get("search"), limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleUserProjects(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	target, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := a.projectsSvc.ListUserProjects(r.Context(), u.ID, target)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeEntries(w, entries)
}

// pathID reads a path parameter, answering 400 itself when it is blank.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{name: "required"}))
		return "", false
	}
	return id, true
}

func formatMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatMillisPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	out := formatMillis(*t)
	return &out
}
