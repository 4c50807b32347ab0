package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"cvPortal/internal/render"
	"cvPortal/internal/storage"
)

// avatarURLTTL 是头像预签名链接的有效期，也是 MinIO 允许的最大值。
const avatarURLTTL = 7 * 24 * time.Hour

// ObjectStore 是头像上传需要的对象存储能力。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// MinIO 把头像存入对象存储并返回预签名链接。
type MinIO struct {
	store    ObjectStore
	scanner  Scanner
	userID   uint
	maxBytes int64
}

// NewMinIO 创建绑定到用户的 MinIO 图床。scanner 可为空。
func NewMinIO(store ObjectStore, scanner Scanner, userID uint, maxBytes int64) *MinIO {
	return &MinIO{store: store, scanner: scanner, userID: userID, maxBytes: maxBytes}
}

func (m *MinIO) Upload(ctx context.Context, img render.Image) (string, error) {
	data, contentType, err := readImage(img, m.maxBytes)
	if err != nil {
		return "", err
	}
	if err := scan(m.scanner, data); err != nil {
		return "", err
	}

	key := storage.AvatarKey(m.userID, uuid.NewString()+extension(img.Filename, contentType))
	if _, err := m.store.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	url, err := m.store.GeneratePresignedURL(ctx, key, avatarURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign avatar url: %w", err)
	}
	return url, nil
}

func extension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
