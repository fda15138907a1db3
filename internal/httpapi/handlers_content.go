package httpapi

import (
	"net/http"

	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

type articleRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (a *api) handleArticlesList(kind domain.ArticleKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := a.contentSvc.ListArticles(r.Context(), kind)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func (a *api) handleArticleCreate(kind domain.ArticleKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		var req articleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadJSON(w, err)
			return
		}

		out, err := a.contentSvc.CreateArticle(r.Context(), u, kind, service.ArticleInput(req))
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, out)
	}
}

func (a *api) handleArticleUpdate(kind domain.ArticleKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req articleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadJSON(w, err)
			return
		}

		out, err := a.contentSvc.UpdateArticle(r.Context(), u, kind, id, service.ArticleInput(req))
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func (a *api) handleArticleDelete(kind domain.ArticleKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		if err := a.contentSvc.DeleteArticle(r.Context(), u, kind, id); err != nil {
			WriteDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *api) handleReleasesList(w http.ResponseWriter, r *http.Request) {
	out, err := a.contentSvc.ListReleases(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleReleaseDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rel, payload, err := a.contentSvc.DownloadRelease(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeAttachment(w, rel.FileName, "application/octet-stream", payload)
}

func (a *api) handleReleaseCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	if !parseUpload(w, r, a.maxReleaseBytes) {
		return
	}

	payload, fileName, err := formFile(r, "file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_multipart", "could not read file")
		return
	}

	out, err := a.contentSvc.CreateRelease(r.Context(), u, service.ReleaseInput{
		Title:    r.FormValue("title"),
		Notes:    r.FormValue("notes"),
		Version:  r.FormValue("version"),
		Platform: r.FormValue("platform"),
		FileName: fileName,
		Payload:  payload,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (a *api) handleReleaseDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := a.contentSvc.DeleteRelease(r.Context(), u, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleQuestionsList(w http.ResponseWriter, r *http.Request) {
	out, err := a.contentSvc.ListQuestions(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

type questionRequest struct {
	Question string `json:"question"`
}

func (a *api) handleQuestionCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req questionRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req, maxJSONBody); err != nil {
		writeBadJSON(w, err)
		return
	}

	out, err := a.contentSvc.AskQuestion(r.Context(), u, req.Question)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (a *api) handleQuestionAnswer(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	out, err := a.contentSvc.AnswerQuestion(r.Context(), u, id, req.Answer)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleQuestionDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := a.contentSvc.DeleteQuestion(r.Context(), u, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
