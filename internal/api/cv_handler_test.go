package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/database"
	"cvPortal/internal/tasks"
)

type cvTestEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	repo    *cvstore.Repository
	storage *fakeStorage
	queue   *fakeQueue
}

func newCVTestEnv(t *testing.T) cvTestEnv {
	t.Helper()
	db := newTestDB(t)
	seedUser(t, db, "alice", "x", database.RoleUser)
	seedUser(t, db, "bob", "x", database.RoleUser)

	env := cvTestEnv{db: db, repo: cvstore.New(db), storage: &fakeStorage{}, queue: &fakeQueue{}}
	h := NewCVHandler(env.repo, env.storage, env.queue, "https://cv.example.com/")

	router := newTestEngine()
	router.GET("/v1/share/:token", h.GetSharedCV)
	g := router.Group("/v1/cvs")
	g.GET("", h.ListCVs)
	g.POST("", h.SaveCV)
	g.GET("/:id", h.GetCV)
	g.DELETE("/:id", h.DeleteCV)
	g.POST("/:id/share", h.ShareCV)
	g.DELETE("/:id/share", h.UnshareCV)
	g.POST("/:id/export-pdf", h.ExportPDF)
	g.GET("/:id/download-link", h.GetDownloadLink)
	env.router = router
	return env
}

type savedCV struct {
	cv.WirePayload
	ShareToken string `json:"shareToken"`
	HasPDF     bool   `json:"hasPdf"`
}

func (e cvTestEnv) create(t *testing.T, userID uint) cv.Payload {
	t.Helper()
	w := doJSON(t, e.router, http.MethodPost, "/v1/cvs", userID, wireBody(t, cv.ToPayload("Backend", "", savableLayout()), true))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp savedCV
	decodeBody(t, w, &resp)
	return cv.DecodeWire(resp.WirePayload)
}

func TestSaveCV_CreateThenUpdate(t *testing.T) {
	env := newCVTestEnv(t)

	created := env.create(t, 1)
	if created.ID.IsZero() {
		t.Fatalf("expected server assigned id")
	}
	if created.Status != cv.StatusPending {
		t.Fatalf("expected pending status, got %q", created.Status)
	}

	created.Title = "Renamed"
	w := doJSON(t, env.router, http.MethodPost, "/v1/cvs", 1, wireBody(t, created, false))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp savedCV
	decodeBody(t, w, &resp)
	updated := cv.DecodeWire(resp.WirePayload)
	if updated.ID != created.ID || updated.Title != "Renamed" {
		t.Fatalf("unexpected update result %+v", updated)
	}
}

func TestSaveCV_Rejects(t *testing.T) {
	env := newCVTestEnv(t)

	invalid := savableLayout()
	invalid.Right[0].Data = map[string]any{}

	testCases := []struct {
		name   string
		userID uint
		body   any
		want   int
	}{
		{name: "unauthenticated", body: wireBody(t, cv.ToPayload("x", "", savableLayout()), true), want: http.StatusUnauthorized},
		{name: "no blocks", userID: 1, body: map[string]any{"title": "empty"}, want: http.StatusBadRequest},
		{name: "validation", userID: 1, body: wireBody(t, cv.ToPayload("x", "", invalid), true), want: http.StatusUnprocessableEntity},
		{name: "unknown id", userID: 1, body: wireBody(t, cv.ToPayload("x", "999", savableLayout()), true), want: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, env.router, http.MethodPost, "/v1/cvs", tc.userID, tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d got %d body=%s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetCV_OwnerScoped(t *testing.T) {
	env := newCVTestEnv(t)
	created := env.create(t, 1)

	if w := doJSON(t, env.router, http.MethodGet, "/v1/cvs/"+string(created.ID), 1, nil); w.Code != http.StatusOK {
		t.Fatalf("owner get: expected 200 got %d", w.Code)
	}
	if w := doJSON(t, env.router, http.MethodGet, "/v1/cvs/"+string(created.ID), 2, nil); w.Code != http.StatusNotFound {
		t.Fatalf("other user get: expected 404 got %d", w.Code)
	}
	if w := doJSON(t, env.router, http.MethodGet, "/v1/cvs/abc", 1, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400 got %d", w.Code)
	}

	w := doJSON(t, env.router, http.MethodGet, "/v1/cvs", 2, nil)
	var list struct {
		CVs []cvSummary `json:"cvs"`
	}
	decodeBody(t, w, &list)
	if len(list.CVs) != 0 {
		t.Fatalf("expected bob to see no cvs, got %d", len(list.CVs))
	}
}

func TestShareCV_Lifecycle(t *testing.T) {
	env := newCVTestEnv(t)
	created := env.create(t, 1)

	w := doJSON(t, env.router, http.MethodPost, "/v1/cvs/"+string(created.ID)+"/share", 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("share: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var share struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	decodeBody(t, w, &share)
	if share.URL != "https://cv.example.com/share/"+share.Token {
		t.Fatalf("unexpected share url %q", share.URL)
	}

	w = doJSON(t, env.router, http.MethodGet, "/v1/share/"+share.Token, 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("shared get: expected 200 got %d", w.Code)
	}
	var shared savedCV
	decodeBody(t, w, &shared)
	if shared.ShareToken != "" {
		t.Fatalf("shared view must not echo the token")
	}

	if w := doJSON(t, env.router, http.MethodDelete, "/v1/cvs/"+string(created.ID)+"/share", 1, nil); w.Code != http.StatusNoContent {
		t.Fatalf("unshare: expected 204 got %d", w.Code)
	}
	if w := doJSON(t, env.router, http.MethodGet, "/v1/share/"+share.Token, 0, nil); w.Code != http.StatusForbidden {
		t.Fatalf("after unshare: expected 403 got %d", w.Code)
	}
}

func TestSaveCV_WithoutVisibilityKeepsShareLink(t *testing.T) {
	env := newCVTestEnv(t)
	created := env.create(t, 1)

	w := doJSON(t, env.router, http.MethodPost, "/v1/cvs/"+string(created.ID)+"/share", 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("share: expected 200 got %d", w.Code)
	}
	var share struct {
		Token string `json:"token"`
	}
	decodeBody(t, w, &share)

	created.Title = "Edited after sharing"
	body := wireBody(t, created, true)
	body.Visibility = ""
	if w := doJSON(t, env.router, http.MethodPost, "/v1/cvs", 1, body); w.Code != http.StatusOK {
		t.Fatalf("resave: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, env.router, http.MethodGet, "/v1/share/"+share.Token, 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("shared get after resave: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var shared savedCV
	decodeBody(t, w, &shared)
	if shared.Title != "Edited after sharing" || cv.ParseVisibility(shared.Visibility) != cv.VisibilityPublic {
		t.Fatalf("unexpected shared cv %+v", shared.WirePayload)
	}

	body.Visibility = string(cv.VisibilityPrivate)
	if w := doJSON(t, env.router, http.MethodPost, "/v1/cvs", 1, body); w.Code != http.StatusOK {
		t.Fatalf("private resave: expected 200 got %d", w.Code)
	}
	if w := doJSON(t, env.router, http.MethodGet, "/v1/share/"+share.Token, 0, nil); w.Code != http.StatusForbidden {
		t.Fatalf("explicit private: expected 403 got %d", w.Code)
	}
}

func TestExportPDF_EnqueuesTask(t *testing.T) {
	env := newCVTestEnv(t)
	created := env.create(t, 1)

	w := doJSON(t, env.router, http.MethodPost, "/v1/cvs/"+string(created.ID)+"/export-pdf", 1, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	if len(env.queue.tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(env.queue.tasks))
	}
	payload, err := tasks.ParseCVExportPDFPayload(env.queue.tasks[0])
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	id, _ := created.ID.Uint()
	if payload.CVID != id || payload.UserID != 1 || payload.CorrelationID == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if w := doJSON(t, env.router, http.MethodPost, "/v1/cvs/"+string(created.ID)+"/export-pdf", 2, nil); w.Code != http.StatusNotFound {
		t.Fatalf("other user export: expected 404 got %d", w.Code)
	}
}

func TestDownloadLinkAndDelete(t *testing.T) {
	env := newCVTestEnv(t)
	created := env.create(t, 1)
	path := "/v1/cvs/" + string(created.ID)

	if w := doJSON(t, env.router, http.MethodGet, path+"/download-link", 1, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before export, got %d", w.Code)
	}

	id, _ := created.ID.Uint()
	if _, err := env.repo.SetPDF(t.Context(), id, "generated-cvs/1/a.pdf"); err != nil {
		t.Fatalf("set pdf: %v", err)
	}
	w := doJSON(t, env.router, http.MethodGet, path+"/download-link", 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var link struct {
		URL string `json:"url"`
	}
	decodeBody(t, w, &link)
	if link.URL != "https://example.invalid/generated-cvs/1/a.pdf" {
		t.Fatalf("unexpected link %q", link.URL)
	}

	if w := doJSON(t, env.router, http.MethodDelete, path, 1, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", w.Code)
	}
	if len(env.storage.deleted) != 1 || env.storage.deleted[0] != "generated-cvs/1/a.pdf" {
		t.Fatalf("expected pdf cleanup, got %v", env.storage.deleted)
	}
	if w := doJSON(t, env.router, http.MethodGet, path, 1, nil); w.Code != http.StatusNotFound {
		t.Fatalf("after delete: expected 404 got %d", w.Code)
	}
}
