package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/cvs/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/cvs/:id", "204"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cvs/5", nil))

	after := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/cvs/:id", "204"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestAsynqMetricsMiddlewareCountsFailures(t *testing.T) {
	handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return errors.New("boom")
	}))

	before := testutil.ToFloat64(taskFailedTotal.WithLabelValues("test:fail", "error"))
	if err := handler.ProcessTask(context.Background(), asynq.NewTask("test:fail", nil)); err == nil {
		t.Fatal("expected error to pass through")
	}
	if got := testutil.ToFloat64(taskFailedTotal.WithLabelValues("test:fail", "error")) - before; got != 1 {
		t.Fatalf("expected one failure counted, got %v", got)
	}

	skip := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return fmt.Errorf("bad payload: %w", asynq.SkipRetry)
	}))
	before = testutil.ToFloat64(taskFailedTotal.WithLabelValues("test:skip", "skip_retry"))
	_ = skip.ProcessTask(context.Background(), asynq.NewTask("test:skip", nil))
	if got := testutil.ToFloat64(taskFailedTotal.WithLabelValues("test:skip", "skip_retry")) - before; got != 1 {
		t.Fatalf("expected one skip_retry failure counted, got %v", got)
	}
}

func TestGinMiddlewareCollapsesUnmatchedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())

	before := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, unmatchedPath, "404"))
	for _, p := range []string{"/v1/editor/sessions/a", "/v1/editor/sessions/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	if got := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, unmatchedPath, "404")) - before; got != 2 {
		t.Fatalf("expected two unmatched requests, got %v", got)
	}
}

func TestEditorMetrics(t *testing.T) {
	SetEditorSessions(3)
	if got := testutil.ToFloat64(editorSessions); got != 3 {
		t.Fatalf("expected 3 sessions, got %v", got)
	}
	before := testutil.ToFloat64(cvSavesTotal.WithLabelValues(SaveCreated))
	ObserveSave(SaveCreated)
	if got := testutil.ToFloat64(cvSavesTotal.WithLabelValues(SaveCreated)) - before; got != 1 {
		t.Fatalf("expected one save counted, got %v", got)
	}
}
