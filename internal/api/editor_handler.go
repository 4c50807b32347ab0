package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cvPortal/internal/api/middleware"
	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/editor"
	"cvPortal/internal/imagehost"
	"cvPortal/internal/metrics"
	"cvPortal/internal/render"
)

// EditorHandler 把编辑会话的操作暴露为 HTTP 接口。
type EditorHandler struct {
	sessions       *editor.Registry
	maxAvatarBytes int64
}

// NewEditorHandler 构造编辑会话处理器。
func NewEditorHandler(sessions *editor.Registry, maxAvatarBytes int64) *EditorHandler {
	return &EditorHandler{sessions: sessions, maxAvatarBytes: maxAvatarBytes}
}

type createSessionRequest struct {
	Mode       string          `json:"mode"`
	CVID       cv.ID           `json:"cvId"`
	ShareToken string          `json:"shareToken"`
	CV         *cv.WirePayload `json:"cv"`
}

type sessionResponse struct {
	Session  string          `json:"session"`
	Snapshot editor.Snapshot `json:"snapshot"`
}

type changeResponse struct {
	Changed  bool            `json:"changed"`
	Snapshot editor.Snapshot `json:"snapshot"`
}

// CreateSession 创建编辑会话并挂载 CV。拉取失败时仍返回会话，错误写在 snapshot.loadError。
func (h *EditorHandler) CreateSession(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request body")
			return
		}
	}

	in := editor.Incoming{
		Mode:       editor.ParseMode(req.Mode),
		CVID:       req.CVID,
		ShareToken: req.ShareToken,
	}
	if req.CV != nil {
		p := cv.DecodeWire(*req.CV)
		in.CV = &p
	}

	session := h.sessions.Create(userID)

	logger := middleware.LoggerFromContext(c).With(slog.String("session_id", session.ID))
	if err := session.Controller.Mount(c.Request.Context(), in); err != nil {
		logger.Warn("editor mount fell back to default layout", slog.Any("error", err))
	}
	logger.Info("editor session created", slog.String("mode", string(in.Mode)))

	c.JSON(http.StatusCreated, sessionResponse{Session: session.ID, Snapshot: session.Controller.Snapshot()})
}

// GetSession 返回会话快照。
func (h *EditorHandler) GetSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: c.Param("sid"), Snapshot: ctrl.Snapshot()})
}

// DeleteSession 卸载并关闭会话。
func (h *EditorHandler) DeleteSession(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if err := h.sessions.Delete(userID, c.Param("sid")); err != nil {
		NotFound(c, "editor session not found")
		return
	}
	c.Status(http.StatusNoContent)
}

type titleRequest struct {
	Title string `json:"title"`
}

// SetTitle 修改标题。
func (h *EditorHandler) SetTitle(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	h.respond(c, ctrl, true, ctrl.SetTitle(req.Title))
}

type visibilityRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}

// SetVisibility 修改可见性。
func (h *EditorHandler) SetVisibility(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.respond(c, ctrl, true, ctrl.SetVisibility(cv.ParseVisibility(req.Visibility)))
}

type moveRequest struct {
	BlockID string `json:"blockId" binding:"required"`
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
	Index   *int   `json:"index"`
}

// MoveBlock 在区域之间移动块；index 缺省时追加到末尾。
func (h *EditorHandler) MoveBlock(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	from, okFrom := cv.ParseZone(req.From)
	to, okTo := cv.ParseZone(req.To)
	if !okFrom || !okTo {
		BadRequest(c, "invalid zone")
		return
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	changed, err := ctrl.MoveBlock(req.BlockID, from, to, index)
	h.respond(c, ctrl, changed, err)
}

type reorderRequest struct {
	Zone     string `json:"zone" binding:"required"`
	ActiveID string `json:"activeId" binding:"required"`
	OverID   string `json:"overId" binding:"required"`
}

// ReorderBlock 在同一区域内调整顺序。
func (h *EditorHandler) ReorderBlock(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	zone, valid := cv.ParseZone(req.Zone)
	if !valid {
		BadRequest(c, "invalid zone")
		return
	}
	changed, err := ctrl.ReorderBlock(zone, req.ActiveID, req.OverID)
	h.respond(c, ctrl, changed, err)
}

type blockRefRequest struct {
	BlockID string `json:"blockId"`
}

// StartDrag 拾起一个块。
func (h *EditorHandler) StartDrag(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req blockRefRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BlockID == "" {
		BadRequest(c, "blockId is required")
		return
	}
	changed, err := ctrl.PickUp(req.BlockID)
	h.respond(c, ctrl, changed, err)
}

type hoverRequest struct {
	Zone string `json:"zone"`
}

// HoverDrag 更新悬停区域，空值表示离开所有区域。
func (h *EditorHandler) HoverDrag(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req hoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	zone, _ := cv.ParseZone(req.Zone)
	h.respond(c, ctrl, ctrl.Hover(zone), nil)
}

type dropRequest struct {
	OverID string `json:"overId"`
}

// DropDrag 在区域名或块 ID 上放下；没有目标时等同于取消。
func (h *EditorHandler) DropDrag(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	changed, err := ctrl.Drop(req.OverID)
	h.respond(c, ctrl, changed, err)
}

// CancelDrag 取消拖拽。
func (h *EditorHandler) CancelDrag(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.CancelDrag()
	h.respond(c, ctrl, false, nil)
}

// Select 设置面板中的选中块，空值表示取消选择。
func (h *EditorHandler) Select(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req blockRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	ctrl.Select(req.BlockID)
	h.respond(c, ctrl, false, nil)
}

type blockDataRequest struct {
	Data map[string]any `json:"data" binding:"required"`
}

// PatchBlockData 浅合并块数据。
func (h *EditorHandler) PatchBlockData(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req blockDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	changed, err := ctrl.UpdateBlockData(c.Param("bid"), req.Data)
	h.respondBlock(c, ctrl, changed, err)
}

// ReplaceBlockData 整体替换块数据。
func (h *EditorHandler) ReplaceBlockData(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req blockDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	changed, err := ctrl.SetBlockData(c.Param("bid"), req.Data)
	h.respondBlock(c, ctrl, changed, err)
}

type fieldRequest struct {
	Value string `json:"value"`
}

// SetField 修改单实体块的一个字段。
func (h *EditorHandler) SetField(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	h.respond(c, ctrl, true, ctrl.SetField(c.Param("bid"), c.Param("field"), req.Value))
}

// AddEntry 在列表块末尾追加空条目。
func (h *EditorHandler) AddEntry(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	entryID, err := ctrl.AddEntry(c.Param("bid"))
	if err != nil {
		h.writeEditError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entryId": entryID, "snapshot": ctrl.Snapshot()})
}

type entryRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// UpdateEntry 修改列表条目的一个字段。
func (h *EditorHandler) UpdateEntry(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.respond(c, ctrl, true, ctrl.UpdateEntry(c.Param("bid"), c.Param("eid"), req.Field, req.Value))
}

// RemoveEntry 删除列表条目。
func (h *EditorHandler) RemoveEntry(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, true, ctrl.RemoveEntry(c.Param("bid"), c.Param("eid")))
}

// UploadAvatar 上传头像文件，成功后写入 data.image。
func (h *EditorHandler) UploadAvatar(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.maxAvatarBytes > 0 && file.Size > h.maxAvatarBytes {
		Error(c, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	url, err := ctrl.UploadAvatar(c.Request.Context(), c.Param("bid"), render.Image{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        reader,
	})
	if err != nil {
		h.writeEditError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "snapshot": ctrl.Snapshot()})
}

// Save 校验并保存；首次保存返回 201 并采用服务端分配的 ID。
func (h *EditorHandler) Save(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	logger := middleware.LoggerFromContext(c)

	res, err := ctrl.Save(c.Request.Context())
	if err != nil {
		var verr *cv.ValidationError
		switch {
		case errors.As(err, &verr):
			metrics.ObserveSave(metrics.SaveInvalid)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":     verr.Message,
				"blockId":   verr.BlockID,
				"blockType": verr.Type,
			})
		case errors.Is(err, editor.ErrReadOnly), errors.Is(err, editor.ErrSaving), errors.Is(err, editor.ErrNotLoaded):
			metrics.ObserveSave(metrics.SaveRejected)
			h.writeEditError(c, err)
		case errors.Is(err, cvstore.ErrNotFound):
			metrics.ObserveSave(metrics.SaveFailed)
			NotFound(c, "cv not found")
		default:
			metrics.ObserveSave(metrics.SaveFailed)
			logger.Error("editor save failed", slog.Any("error", err))
			Internal(c, "failed to save cv")
		}
		return
	}

	status := http.StatusOK
	result := metrics.SaveUpdated
	if res.Created {
		status = http.StatusCreated
		result = metrics.SaveCreated
	}
	metrics.ObserveSave(result)
	logger.Info("editor saved cv", slog.String("cv_id", string(res.ID)), slog.Bool("created", res.Created))
	c.JSON(status, gin.H{"id": res.ID, "created": res.Created, "snapshot": ctrl.Snapshot()})
}

// Preview 渲染预览 HTML，mode=modal 时强制只读。
func (h *EditorHandler) Preview(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	readOnly, _ := strconv.ParseBool(c.Query("readOnly"))
	body, err := ctrl.Preview(render.PreviewOptions{
		Mode:     render.ParsePreviewMode(c.Query("mode")),
		ReadOnly: readOnly,
	})
	h.writeHTML(c, body, err)
}

// Panel 渲染布局面板 HTML。
func (h *EditorHandler) Panel(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	body, err := ctrl.Panel()
	h.writeHTML(c, body, err)
}

// DragOverlay 渲染拖拽浮层，没有拖拽时返回 204。
func (h *EditorHandler) DragOverlay(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	body, active, err := ctrl.DragOverlay()
	if err == nil && !active {
		c.Status(http.StatusNoContent)
		return
	}
	h.writeHTML(c, body, err)
}

// PrintDocument 渲染完整的打印页面。
func (h *EditorHandler) PrintDocument(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	body, err := ctrl.PrintDocument()
	h.writeHTML(c, body, err)
}

func (h *EditorHandler) controller(c *gin.Context) (*editor.Controller, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	session, err := h.sessions.Get(userID, c.Param("sid"))
	if err != nil {
		NotFound(c, "editor session not found")
		return nil, false
	}
	return session.Controller, true
}

func (h *EditorHandler) respond(c *gin.Context, ctrl *editor.Controller, changed bool, err error) {
	if err != nil {
		h.writeEditError(c, err)
		return
	}
	c.JSON(http.StatusOK, changeResponse{Changed: changed, Snapshot: ctrl.Snapshot()})
}

// respondBlock 把“块不存在”的 no-op 报告为 404。
func (h *EditorHandler) respondBlock(c *gin.Context, ctrl *editor.Controller, changed bool, err error) {
	if err == nil && !changed {
		if _, ok := ctrl.Layout().Find(c.Param("bid")); !ok {
			NotFound(c, render.ErrUnknownBlock.Error())
			return
		}
	}
	h.respond(c, ctrl, changed, err)
}

func (h *EditorHandler) writeHTML(c *gin.Context, body []byte, err error) {
	if err != nil {
		middleware.LoggerFromContext(c).Error("render editor html failed", slog.Any("error", err))
		Internal(c, "failed to render")
		return
	}
	HTML(c, body)
}

func (h *EditorHandler) writeEditError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, editor.ErrReadOnly):
		Forbidden(c, err.Error())
	case errors.Is(err, editor.ErrSaving), errors.Is(err, editor.ErrNotLoaded), errors.Is(err, render.ErrUploadInFlight):
		Conflict(c, err.Error())
	case errors.Is(err, render.ErrUnknownBlock), errors.Is(err, render.ErrUnknownEntry):
		NotFound(c, err.Error())
	case errors.Is(err, render.ErrWrongType), errors.Is(err, render.ErrUnknownField):
		BadRequest(c, err.Error())
	case errors.Is(err, imagehost.ErrTooLarge):
		Error(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, imagehost.ErrNotImage):
		Error(c, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, imagehost.ErrInfected):
		BadRequest(c, err.Error())
	case errors.Is(err, render.ErrNoImageHost), errors.Is(err, editor.ErrNoPersistence):
		Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		middleware.LoggerFromContext(c).Error("editor operation failed", slog.Any("error", err))
		Internal(c, "editor operation failed")
	}
}
