package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"cvPortal/internal/config"
	"cvPortal/internal/render"
)

// Cloudinary 通过 unsigned upload preset 上传头像。
type Cloudinary struct {
	endpoint string
	preset   string
	maxBytes int64
	http     *http.Client
}

// NewCloudinary 创建 Cloudinary 图床。httpClient 为空时按配置超时创建。
func NewCloudinary(cfg config.ImageHostConfig, httpClient *http.Client) *Cloudinary {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Cloudinary{
		endpoint: fmt.Sprintf("%s/v1_1/%s/image/upload", base, cfg.CloudName),
		preset:   cfg.UploadPreset,
		maxBytes: cfg.MaxBytes,
		http:     httpClient,
	}
}

func (c *Cloudinary) Upload(ctx context.Context, img render.Image) (string, error) {
	data, contentType, err := readImage(img, c.maxBytes)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("upload_preset", c.preset); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	header := make(textproto.MIMEHeader)
	filename := img.Filename
	if filename == "" {
		filename = "avatar"
	}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	var out struct {
		SecureURL string `json:"secure_url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error.Message != "" {
			return "", fmt.Errorf("image host status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("image host status %d", resp.StatusCode)
	}
	if out.SecureURL == "" {
		return "", errors.New("image host returned no url")
	}
	return out.SecureURL, nil
}
