package cvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/lithammer/shortuuid/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvPortal/internal/cv"
	"cvPortal/internal/database"
)

var (
	ErrNotFound      = errors.New("cv not found")
	ErrNotShared     = errors.New("cv is not shared")
	ErrInvalidID     = errors.New("invalid cv id")
	ErrInvalidStatus = errors.New("invalid cv status")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ReviewFilter 是审核列表的筛选与游标分页条件，按 ID 倒序。
type ReviewFilter struct {
	Status  cv.Status
	Keyword string
	LastID  uint
	Size    int
}

// Record 是一份已保存的 CV 及其元数据。
type Record struct {
	Payload    cv.Payload
	UserID     uint
	ShareToken string
	PdfKey     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository 基于 gorm 读写 CV。除 GetShared 与 GetByID 外所有操作都按所有者过滤。
type Repository struct {
	db *gorm.DB
}

// New 创建仓库。
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save 按 payload.ID 新建或整体覆盖一份 CV，返回是否为新建。Visibility 为空时沿用已保存的值。
func (r *Repository) Save(ctx context.Context, userID uint, p cv.Payload) (Record, bool, error) {
	layout, blocks, err := encodeColumns(p)
	if err != nil {
		return Record{}, false, err
	}

	if p.ID.IsZero() {
		visibility := p.Visibility
		if visibility == "" {
			visibility = cv.VisibilityPrivate
		}
		model := database.CV{
			Title:      p.Title,
			Layout:     layout,
			Blocks:     blocks,
			Visibility: string(visibility),
			Status:     string(cv.StatusPending),
			UserID:     userID,
		}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return Record{}, false, fmt.Errorf("create cv: %w", err)
		}
		return toRecord(model), true, nil
	}

	model, err := r.find(ctx, userID, p.ID)
	if err != nil {
		return Record{}, false, err
	}
	updates := map[string]any{
		"title":  p.Title,
		"layout": layout,
		"blocks": blocks,
	}
	// 未携带 visibility 的保存不改变分享状态。
	if p.Visibility != "" {
		updates["visibility"] = string(p.Visibility)
	}
	if err := r.db.WithContext(ctx).Model(&model).Updates(updates).Error; err != nil {
		return Record{}, false, fmt.Errorf("update cv %d: %w", model.ID, err)
	}
	if err := r.db.WithContext(ctx).First(&model, model.ID).Error; err != nil {
		return Record{}, false, fmt.Errorf("reload cv %d: %w", model.ID, err)
	}
	return toRecord(model), false, nil
}

// List 返回用户的全部 CV，最近更新的在前。
func (r *Repository) List(ctx context.Context, userID uint) ([]Record, error) {
	var models []database.CV
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list cvs: %w", err)
	}
	return slice.Map(models, func(_ int, m database.CV) Record {
		return toRecord(m)
	}), nil
}

// Get 返回用户拥有的一份 CV。
func (r *Repository) Get(ctx context.Context, userID uint, id cv.ID) (Record, error) {
	model, err := r.find(ctx, userID, id)
	if err != nil {
		return Record{}, err
	}
	return toRecord(model), nil
}

// GetByID 不校验所有者，供后台任务使用。
func (r *Repository) GetByID(ctx context.Context, id uint) (Record, error) {
	var model database.CV
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("query cv %d: %w", id, err)
	}
	return toRecord(model), nil
}

// GetShared 通过分享 token 读取 CV，仅当可见性为 public 时可访问。
func (r *Repository) GetShared(ctx context.Context, token string) (Record, error) {
	if token == "" {
		return Record{}, ErrNotFound
	}
	var model database.CV
	if err := r.db.WithContext(ctx).Where("share_token = ?", token).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("query shared cv: %w", err)
	}
	if cv.ParseVisibility(model.Visibility) != cv.VisibilityPublic {
		return Record{}, ErrNotShared
	}
	return toRecord(model), nil
}

// Delete 删除 CV，返回其 PDF 对象键以便清理。
func (r *Repository) Delete(ctx context.Context, userID uint, id cv.ID) (string, error) {
	model, err := r.find(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if err := r.db.WithContext(ctx).Delete(&database.CV{}, model.ID).Error; err != nil {
		return "", fmt.Errorf("delete cv %d: %w", model.ID, err)
	}
	return model.PdfKey, nil
}

// Share 公开 CV 并返回分享 token，已有 token 时复用。
func (r *Repository) Share(ctx context.Context, userID uint, id cv.ID) (string, error) {
	model, err := r.find(ctx, userID, id)
	if err != nil {
		return "", err
	}
	token := ""
	if model.ShareToken != nil {
		token = *model.ShareToken
	}
	if token == "" {
		token = shortuuid.New()
	}
	updates := map[string]any{
		"visibility":  string(cv.VisibilityPublic),
		"share_token": token,
	}
	if err := r.db.WithContext(ctx).Model(&model).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("share cv %d: %w", model.ID, err)
	}
	return token, nil
}

// Unshare 将 CV 设回 private，token 保留但不再可访问。
func (r *Repository) Unshare(ctx context.Context, userID uint, id cv.ID) error {
	model, err := r.find(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(&model).
		Update("visibility", string(cv.VisibilityPrivate)).Error; err != nil {
		return fmt.Errorf("unshare cv %d: %w", model.ID, err)
	}
	return nil
}

// SetPDF 记录导出 PDF 的对象键，返回被替换的旧键。
func (r *Repository) SetPDF(ctx context.Context, id uint, key string) (string, error) {
	var model database.CV
	if err := r.db.WithContext(ctx).Select("id", "pdf_key").First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query cv %d: %w", id, err)
	}
	if err := r.db.WithContext(ctx).Model(&database.CV{}).
		Where("id = ?", id).
		Update("pdf_key", key).Error; err != nil {
		return "", fmt.Errorf("set pdf key for cv %d: %w", id, err)
	}
	return model.PdfKey, nil
}

// ListForReview 跨用户列出 CV。LastID 为上一页最后一条的 ID，0 表示第一页。
func (r *Repository) ListForReview(ctx context.Context, f ReviewFilter) ([]Record, error) {
	size := f.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	q := r.db.WithContext(ctx).Model(&database.CV{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(kw)+"%")
	}
	if f.LastID > 0 {
		q = q.Where("id < ?", f.LastID)
	}

	var models []database.CV
	if err := q.Order("id DESC").Limit(size).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list cvs for review: %w", err)
	}
	return slice.Map(models, func(_ int, m database.CV) Record {
		return toRecord(m)
	}), nil
}

// SetStatus 更新审核状态。
func (r *Repository) SetStatus(ctx context.Context, id uint, status cv.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res := r.db.WithContext(ctx).Model(&database.CV{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("set status for cv %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) find(ctx context.Context, userID uint, id cv.ID) (database.CV, error) {
	pk, ok := id.Uint()
	if !ok {
		return database.CV{}, ErrInvalidID
	}
	var model database.CV
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", pk, userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.CV{}, ErrNotFound
		}
		return database.CV{}, fmt.Errorf("query cv %d: %w", pk, err)
	}
	return model, nil
}

func encodeColumns(p cv.Payload) (datatypes.JSON, datatypes.JSON, error) {
	w, err := cv.EncodeWire(p, false)
	if err != nil {
		return nil, nil, err
	}
	return datatypes.JSON(w.Layout), datatypes.JSON(w.Blocks), nil
}

// toRecord 容忍历史数据中以字符串保存的 layout/blocks。
func toRecord(m database.CV) Record {
	p := cv.DecodeWire(cv.WirePayload{
		ID:         cv.IDFromUint(m.ID),
		Title:      m.Title,
		Status:     cv.Status(m.Status),
		Layout:     json.RawMessage(m.Layout),
		Blocks:     json.RawMessage(m.Blocks),
		Visibility: m.Visibility,
	})
	if p.Visibility == "" {
		p.Visibility = cv.VisibilityPrivate
	}
	rec := Record{
		Payload:   p,
		UserID:    m.UserID,
		PdfKey:    m.PdfKey,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ShareToken != nil {
		rec.ShareToken = *m.ShareToken
	}
	return rec
}
