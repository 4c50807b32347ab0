package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"cvPortal/internal/api/middleware"
	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/database"
)

func TestReviewHandler(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "alice", "x", database.RoleUser)
	repo := cvstore.New(db)
	for _, title := range []string{"Go Backend", "Frontend"} {
		if _, _, err := repo.Save(t.Context(), 1, cv.ToPayload(title, "", savableLayout())); err != nil {
			t.Fatalf("seed cv: %v", err)
		}
	}

	h := NewReviewHandler(repo)
	router := newTestEngine()
	router.GET("/v1/admin/cvs", h.ListCVs)
	router.PATCH("/v1/admin/cvs/:id/status", h.SetStatus)

	w := doJSON(t, router, http.MethodGet, "/v1/admin/cvs?size=1", 9, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var page struct {
		CVs    []cvSummary `json:"cvs"`
		LastID uint        `json:"lastID"`
	}
	decodeBody(t, w, &page)
	if len(page.CVs) != 1 || page.CVs[0].Title != "Frontend" || page.CVs[0].UserID != 1 {
		t.Fatalf("unexpected first page %+v", page)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/admin/cvs?lastID="+strconv.FormatUint(uint64(page.LastID), 10), 9, nil)
	decodeBody(t, w, &page)
	if len(page.CVs) != 1 || page.CVs[0].Title != "Go Backend" {
		t.Fatalf("unexpected second page %+v", page)
	}

	if w := doJSON(t, router, http.MethodGet, "/v1/admin/cvs?status=done", 9, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: expected 400 got %d", w.Code)
	}

	testCases := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{name: "approve", path: "/v1/admin/cvs/1/status", body: map[string]string{"status": "approved"}, want: http.StatusOK},
		{name: "unknown status", path: "/v1/admin/cvs/1/status", body: map[string]string{"status": "done"}, want: http.StatusBadRequest},
		{name: "missing cv", path: "/v1/admin/cvs/99/status", body: map[string]string{"status": "REJECTED"}, want: http.StatusNotFound},
		{name: "bad id", path: "/v1/admin/cvs/x/status", body: map[string]string{"status": "REJECTED"}, want: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPatch, tc.path, 9, tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d got %d body=%s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	approved, err := repo.ListForReview(t.Context(), cvstore.ReviewFilter{Status: cv.StatusApproved})
	if err != nil || len(approved) != 1 {
		t.Fatalf("expected one approved cv, got %d err=%v", len(approved), err)
	}
}

func TestRoleGateOnAdminRoutes(t *testing.T) {
	router := newTestEngine()
	router.GET("/v1/admin/cvs", func(c *gin.Context) {
		c.Set(middleware.RoleKey, c.GetHeader("X-Test-Role"))
		c.Next()
	}, middleware.RequireRole(database.RoleLead, database.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for role, want := range map[string]int{database.RoleUser: http.StatusForbidden, database.RoleAdmin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/cvs", nil)
		req.Header.Set("X-Test-Role", role)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("role %s: expected %d got %d", role, want, w.Code)
		}
	}
}
