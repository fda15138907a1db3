package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/service"
	"ourpainthub/internal/store/memory"
)

type testHub struct {
	t *testing.T
	h http.Handler
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	st := memory.New()
	admins := service.AdminPolicy{Emails: []string{"admin@example.com"}}
	audit := &service.AuditLog{Store: st}

	authSvc := &service.AuthService{
		Users:      st,
		Sessions:   st,
		External:   st,
		Admins:     admins,
		Audit:      audit,
		SessionTTL: time.Hour,
	}
	h := NewRouter(RouterOpts{
		Auth:    authSvc,
		Profile: &service.ProfileService{Profiles: st, Friends: st, Audit: audit},
		Users:   &service.UsersService{Store: st},
		Friends: &service.FriendsService{Users: st, Friendships: st, Audit: audit},
		Projects: &service.ProjectsService{
			Projects: st, Shares: st, Users: st, Friends: st, Audit: audit,
		},
		Content:     &service.ContentService{Articles: st, Releases: st, Questions: st, Admins: admins, Audit: audit},
		Admin:       &service.AdminService{Users: st, Log: st, Admins: admins, Audit: audit},
		CookieCodec: auth.NewCookieCodec([]byte("0123456789abcdef0123456789abcdef")),
		Tokens:      auth.NewTokenCodec([]byte("fedcba9876543210fedcba9876543210")),
		SessionTTL:  time.Hour,
	})
	return &testHub{t: t, h: h}
}

func (hub *testHub) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	hub.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	hub.h.ServeHTTP(rr, req)
	return rr
}

func (hub *testHub) doJSON(method, path, token, body string) *httptest.ResponseRecorder {
	hub.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return hub.do(method, path, token, r, "application/json")
}

func (hub *testHub) register(email string) sessionResponse {
	hub.t.Helper()
	rr := hub.doJSON(http.MethodPost, "/api/registration/", "", `{"email":"`+email+`","password":"secret-pass"}`)
	if rr.Code != http.StatusCreated {
		hub.t.Fatalf("register %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		hub.t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" || resp.ID == "" {
		hub.t.Fatalf("register %s: missing token or id", email)
	}
	return resp
}

func (hub *testHub) befriend(a, b sessionResponse) {
	hub.t.Helper()
	if rr := hub.doJSON(http.MethodPost, "/api/friends/add/", a.Token, `{"friend_id":"`+b.ID+`"}`); rr.Code != http.StatusCreated {
		hub.t.Fatalf("add friend: status %d body %s", rr.Code, rr.Body.String())
	}
	if rr := hub.doJSON(http.MethodPost, "/api/friends/requests/respond/", b.Token, `{"from_user_id":"`+a.ID+`","action":"accept"}`); rr.Code != http.StatusOK {
		hub.t.Fatalf("accept friend: status %d body %s", rr.Code, rr.Body.String())
	}
}

func (hub *testHub) upload(token, name, fileName string, payload []byte, private bool) projectEntryResponse {
	hub.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("project_name", name)
	_ = mw.WriteField("description", "first draft")
	if private {
		_ = mw.WriteField("private", "true")
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		hub.t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(payload)
	_ = mw.Close()

	rr := hub.do(http.MethodPost, "/api/project/add/", token, &buf, mw.FormDataContentType())
	if rr.Code != http.StatusCreated {
		hub.t.Fatalf("upload: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp projectEntryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		hub.t.Fatalf("decode upload response: %v", err)
	}
	return resp
}

func TestRouterRegisterSetsCookieAndToken(t *testing.T) {
	hub := newTestHub(t)
	rr := hub.doJSON(http.MethodPost, "/api/registration", "", `{"email":"Alice@Example.com","password":"secret-pass","name":"Alice"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body %s", rr.Code, rr.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/role/", nil)
	req.AddCookie(cookie)
	roleRR := httptest.NewRecorder()
	hub.h.ServeHTTP(roleRR, req)
	if roleRR.Code != http.StatusOK {
		t.Fatalf("role via cookie: status %d", roleRR.Code)
	}
	var role roleResponse
	if err := json.NewDecoder(roleRR.Body).Decode(&role); err != nil {
		t.Fatalf("decode role: %v", err)
	}
	if role.Role != "user" || role.IsAdmin {
		t.Fatalf("unexpected role: %+v", role)
	}
}

func TestRouterDuplicateRegistrationConflicts(t *testing.T) {
	hub := newTestHub(t)
	hub.register("bob@example.com")

	rr := hub.doJSON(http.MethodPost, "/api/registration/", "", `{"email":"bob@example.com","password":"another-pass"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "email_taken" {
		t.Fatalf("unexpected error code: %s", e.Code)
	}
}

func TestRouterLoginAndAdminRole(t *testing.T) {
	hub := newTestHub(t)
	hub.register("admin@example.com")

	rr := hub.doJSON(http.MethodPost, "/api/login/", "", `{"email":"admin@example.com","password":"secret-pass"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d", rr.Code)
	}
	var sess sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&sess); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if !sess.IsAdmin {
		t.Fatalf("expected admin flag on login")
	}

	if rr := hub.doJSON(http.MethodGet, "/api/admin/users/", sess.Token, ""); rr.Code != http.StatusOK {
		t.Fatalf("admin users: status %d", rr.Code)
	}

	wrong := hub.doJSON(http.MethodPost, "/api/login/", "", `{"email":"admin@example.com","password":"nope-nope"}`)
	if wrong.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", wrong.Code)
	}
}

func TestRouterRequiresAuthentication(t *testing.T) {
	hub := newTestHub(t)

	rr := hub.doJSON(http.MethodGet, "/api/friends/", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "unauthorized" {
		t.Fatalf("unexpected error code: %s", e.Code)
	}

	if rr := hub.doJSON(http.MethodGet, "/api/friends/", "not-a-jwt", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rr.Code)
	}
}

func TestRouterLogoutRevokesBearerToken(t *testing.T) {
	hub := newTestHub(t)
	u := hub.register("carol@example.com")

	if rr := hub.doJSON(http.MethodPost, "/api/logout/", u.Token, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rr.Code)
	}
	if rr := hub.doJSON(http.MethodGet, "/api/user/role/", u.Token, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("role after logout: status %d", rr.Code)
	}
}

func TestRouterContentPublishingIsAdminOnly(t *testing.T) {
	hub := newTestHub(t)
	user := hub.register("dave@example.com")
	admin := hub.register("admin@example.com")

	body := `{"title":"Release day","content":"Version 2 is out"}`
	if rr := hub.doJSON(http.MethodPost, "/api/news/create/", user.Token, body); rr.Code != http.StatusForbidden {
		t.Fatalf("user create news: status %d", rr.Code)
	}
	if rr := hub.doJSON(http.MethodPost, "/api/news/create/", admin.Token, body); rr.Code != http.StatusCreated {
		t.Fatalf("admin create news: status %d body %s", rr.Code, rr.Body.String())
	}

	rr := hub.doJSON(http.MethodGet, "/api/news/", user.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list news: status %d", rr.Code)
	}
	var items []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode news: %v", err)
	}
	if len(items) != 1 || items[0]["title"] != "Release day" {
		t.Fatalf("unexpected news: %v", items)
	}

	if rr := hub.doJSON(http.MethodPost, "/api/QA/create/", user.Token, `{"question":"Does it run on Linux?"}`); rr.Code != http.StatusCreated {
		t.Fatalf("ask question: status %d", rr.Code)
	}
}

func TestRouterProjectShareAndDownload(t *testing.T) {
	hub := newTestHub(t)
	owner := hub.register("owner@example.com")
	friend := hub.register("friend@example.com")
	stranger := hub.register("stranger@example.com")
	outsider := hub.register("outsider@example.com")
	hub.befriend(owner, friend)

	payload := []byte("OURP\x00layers")
	p := hub.upload(owner.Token, "Sunset", "sunset.ourp", payload, true)
	if p.FileType != "ourp" || p.Version != 1 || !p.Private || !p.Can.Share {
		t.Fatalf("unexpected project: %+v", p)
	}

	shareBody := `{"recipient_ids":["` + friend.ID + `","` + stranger.ID + `","` + owner.ID + `"],"comment":"have a look"}`
	rr := hub.doJSON(http.MethodPost, "/api/project/share/"+p.ProjectID+"/", owner.Token, shareBody)
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("share: status %d body %s", rr.Code, rr.Body.String())
	}
	var shared shareResponse
	if err := json.NewDecoder(rr.Body).Decode(&shared); err != nil {
		t.Fatalf("decode share: %v", err)
	}
	if len(shared.Results) != 3 {
		t.Fatalf("unexpected results: %+v", shared.Results)
	}
	for _, res := range shared.Results {
		switch res.RecipientID {
		case friend.ID, stranger.ID:
			if res.Error != nil || res.SharedID == "" {
				t.Fatalf("expected share to %s to succeed: %+v", res.RecipientID, res)
			}
		case owner.ID:
			if res.Error == nil || res.Error.Code != "validation_error" {
				t.Fatalf("expected self share to fail validation: %+v", res)
			}
		}
	}

	dl := hub.do(http.MethodGet, "/api/project/download/"+p.ProjectID+"/", friend.Token, nil, "")
	if dl.Code != http.StatusOK || !bytes.Equal(dl.Body.Bytes(), payload) {
		t.Fatalf("friend download: status %d", dl.Code)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "Sunset.ourp") {
		t.Fatalf("unexpected content disposition: %s", cd)
	}

	if rr := hub.do(http.MethodGet, "/api/project/download/"+p.ProjectID+"/", outsider.Token, nil, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("outsider download: status %d", rr.Code)
	}

	rr = hub.doJSON(http.MethodGet, "/api/project/received/", stranger.Token, "")
	var received []projectEntryResponse
	if err := json.NewDecoder(rr.Body).Decode(&received); err != nil {
		t.Fatalf("decode received: %v", err)
	}
	if len(received) != 1 || received[0].Kind != "received" || received[0].Comment != "have a look" || received[0].Can.Edit {
		t.Fatalf("unexpected received entries: %+v", received)
	}

	if rr := hub.doJSON(http.MethodDelete, "/api/project/delete_received/"+received[0].SharedID+"/", friend.Token, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("delete someone else's share: status %d", rr.Code)
	}
	if rr := hub.doJSON(http.MethodDelete, "/api/project/delete_received/"+received[0].SharedID+"/", stranger.Token, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete own share: status %d", rr.Code)
	}
}

func TestRouterProjectChangeAppendsVersion(t *testing.T) {
	hub := newTestHub(t)
	owner := hub.register("painter@example.com")
	p := hub.upload(owner.Token, "Sketch", "sketch.json", []byte(`{"layers":[]}`), false)

	rr := hub.doJSON(http.MethodPatch, "/api/project/change/"+p.ProjectID+"/", owner.Token, `{"project_name":"Sketch v2","change_note":"renamed","expected_version":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("change: status %d body %s", rr.Code, rr.Body.String())
	}

	stale := hub.doJSON(http.MethodPatch, "/api/project/change/"+p.ProjectID+"/", owner.Token, `{"description":"x","expected_version":1}`)
	if stale.Code != http.StatusConflict {
		t.Fatalf("stale change: status %d", stale.Code)
	}

	rr = hub.doJSON(http.MethodPost, "/api/project/get_project_versions/"+p.ProjectID+"/", owner.Token, "")
	var versions []struct {
		Version     int    `json:"version"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&versions); err != nil {
		t.Fatalf("decode versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 || versions[0].Description != "renamed" {
		t.Fatalf("unexpected versions: %+v", versions)
	}
}

func TestRouterUnknownRouteIsJSONNotFound(t *testing.T) {
	hub := newTestHub(t)
	rr := hub.doJSON(http.MethodGet, "/api/nope/", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "not_found" {
		t.Fatalf("unexpected error code: %s", e.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRouterHealthz(t *testing.T) {
	hub := newTestHub(t)
	rr := hub.do(http.MethodGet, "/healthz", "", nil, "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz: %d %q", rr.Code, rr.Body.String())
	}
}
