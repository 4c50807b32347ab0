package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvPortal/internal/api/middleware"
	"cvPortal/internal/cv"
	"cvPortal/internal/database"
)

type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-" + strconv.Itoa(len(q.tasks))}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, passwordHash, role string) database.User {
	t.Helper()
	user := database.User{Username: username, PasswordHash: passwordHash, Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// asUser 模拟 AuthMiddleware，从 X-Test-User 读取用户 ID。
func asUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			id, _ := strconv.ParseUint(raw, 10, 64)
			c.Set(middleware.UserIDKey, uint(id))
		}
		c.Next()
	}
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationIDMiddleware(), asUser())
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, userID uint, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

// savableLayout 返回能通过保存前校验的布局。
func savableLayout() cv.Layout {
	return cv.Layout{
		Left: []cv.Block{
			{ID: "skill", Type: cv.TypeSkill, Title: "Skills", Data: map[string]any{"skills": []any{
				map[string]any{"id": "s1", "name": "Go", "description": ""},
			}}},
		},
		Right: []cv.Block{
			{ID: "card", Type: cv.TypeBusinessCard, Title: "Business card", Data: map[string]any{"fullName": "Jane Doe"}},
		},
		Unused: []cv.Block{
			{ID: "avatar", Type: cv.TypeAvatar, Title: "Avatar", Data: map[string]any{}},
		},
	}
}

func wireBody(t *testing.T, p cv.Payload, stringEncoded bool) cv.WirePayload {
	t.Helper()
	w, err := cv.EncodeWire(p, stringEncoded)
	if err != nil {
		t.Fatalf("encode wire: %v", err)
	}
	return w
}
