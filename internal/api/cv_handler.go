package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"cvPortal/internal/api/middleware"
	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/metrics"
	"cvPortal/internal/tasks"
)

const downloadLinkTTL = 5 * time.Minute

// PDFStorage 是 CV 接口需要的对象存储能力。
type PDFStorage interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// TaskEnqueuer 投递异步任务，由 asynq.Client 实现。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CVHandler 负责 CV 的保存、读取、分享与导出。
type CVHandler struct {
	repo          *cvstore.Repository
	storage       PDFStorage
	queue         TaskEnqueuer
	publicBaseURL string
}

// NewCVHandler 构造 CV 处理器。
func NewCVHandler(repo *cvstore.Repository, storage PDFStorage, queue TaskEnqueuer, publicBaseURL string) *CVHandler {
	return &CVHandler{
		repo:          repo,
		storage:       storage,
		queue:         queue,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

type cvResponse struct {
	cv.WirePayload
	ShareToken string    `json:"shareToken,omitempty"`
	HasPDF     bool      `json:"hasPdf"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type cvSummary struct {
	ID         cv.ID     `json:"id"`
	UserID     uint      `json:"userId,omitempty"`
	Title      string    `json:"title"`
	Status     cv.Status `json:"status"`
	Visibility string    `json:"visibility"`
	ShareToken string    `json:"shareToken,omitempty"`
	HasPDF     bool      `json:"hasPdf"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newCVResponse(rec cvstore.Record, withToken bool) (cvResponse, error) {
	w, err := cv.EncodeWire(rec.Payload, true)
	if err != nil {
		return cvResponse{}, err
	}
	resp := cvResponse{
		WirePayload: w,
		HasPDF:      rec.PdfKey != "",
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if withToken {
		resp.ShareToken = rec.ShareToken
	}
	return resp, nil
}

func newCVSummary(rec cvstore.Record) cvSummary {
	return cvSummary{
		ID:         rec.Payload.ID,
		Title:      rec.Payload.Title,
		Status:     rec.Payload.Status,
		Visibility: string(rec.Payload.Visibility),
		ShareToken: rec.ShareToken,
		HasPDF:     rec.PdfKey != "",
		UpdatedAt:  rec.UpdatedAt,
	}
}

// SaveCV 新建或更新 CV。layout 与 blocks 可以是结构化 JSON，也可以是包含 JSON 的字符串。
func (h *CVHandler) SaveCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req cv.WirePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	incoming := cv.DecodeWire(req)
	if len(incoming.Blocks) == 0 {
		BadRequest(c, "layout and blocks are required")
		return
	}
	layout := cv.FromPayload(incoming)
	if err := cv.Validate(layout); err != nil {
		Unprocessable(c, err.Error())
		return
	}
	p := cv.ToPayload(strings.TrimSpace(incoming.Title), incoming.ID, layout)
	p.Visibility = incoming.Visibility

	logger := middleware.LoggerFromContext(c)
	rec, created, err := h.repo.Save(c.Request.Context(), userID, p)
	if err != nil {
		if h.writeRepoError(c, err) {
			return
		}
		logger.Error("save cv failed", slog.Any("error", err))
		Internal(c, "failed to save cv")
		return
	}

	resp, err := newCVResponse(rec, true)
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	logger.Info("cv saved", slog.String("cv_id", string(rec.Payload.ID)), slog.Bool("created", created))
	c.JSON(status, resp)
}

// ListCVs 返回当前用户的 CV 概要列表。
func (h *CVHandler) ListCVs(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	records, err := h.repo.List(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list cvs failed", slog.Any("error", err))
		Internal(c, "failed to list cvs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cvs": slice.Map(records, func(_ int, rec cvstore.Record) cvSummary {
		return newCVSummary(rec)
	})})
}

// GetCV 返回当前用户的一份 CV。
func (h *CVHandler) GetCV(c *gin.Context) {
	rec, ok := h.ownedCV(c)
	if !ok {
		return
	}
	resp, err := newCVResponse(rec, true)
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteCV 删除 CV，并清理已导出的 PDF。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	pdfKey, err := h.repo.Delete(ctx, userID, cv.ID(c.Param("id")))
	if err != nil {
		if h.writeRepoError(c, err) {
			return
		}
		logger.Error("delete cv failed", slog.Any("error", err))
		Internal(c, "failed to delete cv")
		return
	}
	if pdfKey != "" && h.storage != nil {
		if err := h.storage.DeleteObject(ctx, pdfKey); err != nil {
			logger.Warn("delete cv pdf failed", slog.String("object_key", pdfKey), slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}

// ShareCV 将 CV 设为公开并返回分享链接。
func (h *CVHandler) ShareCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	token, err := h.repo.Share(c.Request.Context(), userID, cv.ID(c.Param("id")))
	if err != nil {
		if h.writeRepoError(c, err) {
			return
		}
		middleware.LoggerFromContext(c).Error("share cv failed", slog.Any("error", err))
		Internal(c, "failed to share cv")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"url":        h.publicBaseURL + "/share/" + token,
		"visibility": cv.VisibilityPublic,
	})
}

// UnshareCV 将 CV 设回私有，已发出的链接随即失效。
func (h *CVHandler) UnshareCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if err := h.repo.Unshare(c.Request.Context(), userID, cv.ID(c.Param("id"))); err != nil {
		if h.writeRepoError(c, err) {
			return
		}
		middleware.LoggerFromContext(c).Error("unshare cv failed", slog.Any("error", err))
		Internal(c, "failed to unshare cv")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSharedCV 无需登录，通过分享 token 读取公开 CV。
func (h *CVHandler) GetSharedCV(c *gin.Context) {
	rec, err := h.repo.GetShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		if h.writeRepoError(c, err) {
			return
		}
		middleware.LoggerFromContext(c).Error("get shared cv failed", slog.Any("error", err))
		Internal(c, "failed to load cv")
		return
	}
	resp, err := newCVResponse(rec, false)
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportPDF 投递 PDF 导出任务。
func (h *CVHandler) ExportPDF(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	rec, ok := h.ownedCV(c)
	if !ok {
		return
	}
	cvID, _ := rec.Payload.ID.Uint()

	logger := middleware.LoggerFromContext(c)
	task, err := tasks.NewCVExportPDFTask(cvID, userID, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build export task failed", slog.Any("error", err))
		Internal(c, "failed to create task")
		return
	}
	info, err := h.queue.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue task")
		return
	}
	metrics.ObserveExportEnqueued()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "PDF export request accepted",
		"task_id": info.ID,
	})
}

// GetDownloadLink 生成已导出 PDF 的预签名下载链接。
func (h *CVHandler) GetDownloadLink(c *gin.Context) {
	rec, ok := h.ownedCV(c)
	if !ok {
		return
	}
	if rec.PdfKey == "" {
		Conflict(c, "pdf not ready")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), rec.PdfKey, downloadLinkTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *CVHandler) ownedCV(c *gin.Context) (cvstore.Record, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return cvstore.Record{}, false
	}
	rec, err := h.repo.Get(c.Request.Context(), userID, cv.ID(c.Param("id")))
	if err != nil {
		if !h.writeRepoError(c, err) {
			middleware.LoggerFromContext(c).Error("query cv failed", slog.Any("error", err))
			Internal(c, "failed to query cv")
		}
		return cvstore.Record{}, false
	}
	return rec, true
}

// writeRepoError 处理仓库的已知错误，返回是否已写出响应。
func (h *CVHandler) writeRepoError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, cvstore.ErrInvalidID):
		BadRequest(c, "invalid cv id")
	case errors.Is(err, cvstore.ErrNotFound):
		NotFound(c, "cv not found")
	case errors.Is(err, cvstore.ErrNotShared):
		Forbidden(c, "cv is not shared")
	case errors.Is(err, cvstore.ErrInvalidStatus):
		BadRequest(c, "invalid cv status")
	default:
		return false
	}
	return true
}
