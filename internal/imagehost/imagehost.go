package imagehost

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dutchcoders/go-clamd"

	"cvPortal/internal/config"
	"cvPortal/internal/render"
)

var (
	ErrTooLarge = errors.New("image too large")
	ErrNotImage = errors.New("file is not an image")
	ErrInfected = errors.New("malicious file detected")
)

// Scanner 在上传前扫描文件内容。
type Scanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd 守护进程扫描文件流。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 创建扫描器，address 形如 tcp://clamd:3310。
func NewClamdScanner(address string) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(address)}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan file: %w", err)
	}
	infected := false
	for result := range results {
		if result.Status != clamd.RES_OK {
			infected = true
		}
	}
	if infected {
		return ErrInfected
	}
	return nil
}

// Factory 为每个用户创建头像上传后端。
type Factory func(userID uint) render.ImageHost

// NewFactory 按配置选择 Cloudinary 或 MinIO 作为头像图床。
func NewFactory(cfg config.ImageHostConfig, store ObjectStore, scanner Scanner) Factory {
	if cfg.Provider == config.ImageHostCloudinary {
		host := NewCloudinary(cfg, nil)
		return func(uint) render.ImageHost { return host }
	}
	return func(userID uint) render.ImageHost {
		return NewMinIO(store, scanner, userID, cfg.MaxBytes)
	}
}

// readImage 读取整个文件并校验大小与类型，返回内容与 Content-Type。
func readImage(img render.Image, maxBytes int64) ([]byte, string, error) {
	if img.Body == nil {
		return nil, "", errors.New("empty image body")
	}
	if maxBytes > 0 && img.Size > maxBytes {
		return nil, "", ErrTooLarge
	}
	reader := img.Body
	if maxBytes > 0 {
		reader = io.LimitReader(img.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", ErrTooLarge
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image body")
	}

	detected := http.DetectContentType(data)
	if !strings.HasPrefix(detected, "image/") {
		return nil, "", ErrNotImage
	}
	contentType := strings.TrimSpace(img.ContentType)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = detected
	}
	return data, contentType, nil
}

func scan(scanner Scanner, data []byte) error {
	if scanner == nil {
		return nil
	}
	return scanner.Scan(bytes.NewReader(data))
}
