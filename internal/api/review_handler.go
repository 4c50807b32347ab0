package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"

	"cvPortal/internal/api/middleware"
	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
)

// ReviewHandler 让 lead/admin 浏览全部 CV 并设置审核状态。
type ReviewHandler struct {
	repo *cvstore.Repository
}

// NewReviewHandler 构造审核处理器。
func NewReviewHandler(repo *cvstore.Repository) *ReviewHandler {
	return &ReviewHandler{repo: repo}
}

// ListCVs 按 lastID 游标分页列出 CV，可按状态与标题关键字筛选。
func (h *ReviewHandler) ListCVs(c *gin.Context) {
	filter := cvstore.ReviewFilter{
		Status:  cv.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Keyword: c.Query("keyword"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		BadRequest(c, "invalid cv status")
		return
	}
	if raw := c.Query("lastID"); raw != "" {
		lastID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			BadRequest(c, "invalid lastID")
			return
		}
		filter.LastID = uint(lastID)
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(c, "invalid size")
			return
		}
		filter.Size = size
	}

	records, err := h.repo.ListForReview(c.Request.Context(), filter)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list cvs for review failed", slog.Any("error", err))
		Internal(c, "failed to list cvs")
		return
	}

	items := slice.Map(records, func(_ int, rec cvstore.Record) cvSummary {
		s := newCVSummary(rec)
		s.UserID = rec.UserID
		s.ShareToken = ""
		return s
	})
	var nextLastID uint
	if len(records) > 0 {
		nextLastID, _ = records[len(records)-1].Payload.ID.Uint()
	}
	c.JSON(http.StatusOK, gin.H{"cvs": items, "lastID": nextLastID})
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus 设置审核状态。
func (h *ReviewHandler) SetStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid cv id")
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	status := cv.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	logger := middleware.LoggerFromContext(c)
	if err := h.repo.SetStatus(c.Request.Context(), uint(id), status); err != nil {
		switch {
		case errors.Is(err, cvstore.ErrInvalidStatus):
			BadRequest(c, "invalid cv status")
		case errors.Is(err, cvstore.ErrNotFound):
			NotFound(c, "cv not found")
		default:
			logger.Error("set cv status failed", slog.Any("error", err))
			Internal(c, "failed to update status")
		}
		return
	}
	logger.Info("cv status updated", slog.Uint64("cv_id", id), slog.String("status", string(status)))
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}
