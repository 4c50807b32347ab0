package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"cvPortal/internal/cv"
)

// Image 是待上传的本地图片。
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageHost 上传图片并返回可公开访问的 URL。
type ImageHost interface {
	Upload(ctx context.Context, img Image) (string, error)
}

// AvatarRenderer 渲染头像块，并负责唯一的外部副作用：上传图片。
// 上传中的块会被标记，重复上传返回 ErrUploadInFlight。
type AvatarRenderer struct {
	host ImageHost

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewAvatarRenderer 创建头像渲染器。
func NewAvatarRenderer(host ImageHost) *AvatarRenderer {
	return &AvatarRenderer{host: host, pending: make(map[string]struct{})}
}

func (r *AvatarRenderer) Type() cv.BlockType {
	return cv.TypeAvatar
}

func (r *AvatarRenderer) Mount(BlockStore, string) bool {
	return false
}

func (r *AvatarRenderer) View(b cv.Block, readOnly bool) BlockView {
	v := baseView(b, readOnly)
	v.Avatar = true
	v.Image = cv.Text(b.Data, "image")
	v.Uploading = r.Uploading(b.ID)
	return v
}

// SetField 直接写入图片 URL。
func (r *AvatarRenderer) SetField(store BlockStore, blockID, field, value string) error {
	if field != "image" {
		return ErrUnknownField
	}
	if _, err := lookup(store, blockID, cv.TypeAvatar); err != nil {
		return err
	}
	store.UpdateBlockData(blockID, map[string]any{"image": value})
	return nil
}

// Uploading 表示该块是否有进行中的上传。
func (r *AvatarRenderer) Uploading(blockID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[blockID]
	return ok
}

// Upload 上传图片，成功后把 URL 写入 data.image；失败时 data 不变。
func (r *AvatarRenderer) Upload(ctx context.Context, store BlockStore, blockID string, img Image) (string, error) {
	url, err := r.UploadImage(ctx, store, blockID, img)
	if err != nil {
		return "", err
	}
	store.UpdateBlockData(blockID, map[string]any{"image": url})
	return url, nil
}

// UploadImage 只把图片交给图床，不修改 data；调用方负责写回 URL。
func (r *AvatarRenderer) UploadImage(ctx context.Context, store BlockStore, blockID string, img Image) (string, error) {
	if r.host == nil {
		return "", ErrNoImageHost
	}
	if _, err := lookup(store, blockID, cv.TypeAvatar); err != nil {
		return "", err
	}
	if !r.begin(blockID) {
		return "", ErrUploadInFlight
	}
	defer r.finish(blockID)

	url, err := r.host.Upload(ctx, img)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	if url == "" {
		return "", errors.New("upload avatar: image host returned no url")
	}
	return url, nil
}

func (r *AvatarRenderer) begin(blockID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[blockID]; ok {
		return false
	}
	r.pending[blockID] = struct{}{}
	return true
}

func (r *AvatarRenderer) finish(blockID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, blockID)
}
