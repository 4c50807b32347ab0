package cvclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cvPortal/internal/cv"
	"cvPortal/internal/editor"
)

var ErrNotFound = errors.New("cv not found")

// APIError 携带服务端返回的错误信息，Message 原样展示给用户。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cv api status %d", e.Status)
	}
	return e.Message
}

// Summary 是列表接口返回的单条 CV 概要。
type Summary struct {
	ID         cv.ID     `json:"id"`
	Title      string    `json:"title"`
	Status     cv.Status `json:"status"`
	Visibility string    `json:"visibility"`
	ShareToken string    `json:"shareToken,omitempty"`
	HasPDF     bool      `json:"hasPdf"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Client 通过 HTTP 访问 CV 持久化接口，layout 与 blocks 以 JSON 字符串发送。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New 创建客户端。httpClient 为空时使用 15 秒超时的默认客户端。
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// Save 新建（ID 为空）或更新 CV。
func (c *Client) Save(ctx context.Context, p cv.Payload) (editor.SaveResult, error) {
	w, err := cv.EncodeWire(p, true)
	if err != nil {
		return editor.SaveResult{}, err
	}
	body, err := json.Marshal(w)
	if err != nil {
		return editor.SaveResult{}, fmt.Errorf("encode cv: %w", err)
	}

	var out cv.WirePayload
	status, err := c.do(ctx, http.MethodPost, "/v1/cvs", body, &out)
	if err != nil {
		return editor.SaveResult{}, err
	}
	id := out.ID
	if id.IsZero() {
		id = p.ID
	}
	return editor.SaveResult{ID: id, Created: status == http.StatusCreated}, nil
}

// Fetch 读取当前用户的一份 CV。
func (c *Client) Fetch(ctx context.Context, id cv.ID) (cv.Payload, error) {
	var out cv.WirePayload
	if _, err := c.do(ctx, http.MethodGet, "/v1/cvs/"+url.PathEscape(string(id)), nil, &out); err != nil {
		return cv.Payload{}, err
	}
	return cv.DecodeWire(out), nil
}

// FetchShared 通过分享 token 读取公开 CV。
func (c *Client) FetchShared(ctx context.Context, token string) (cv.Payload, error) {
	var out cv.WirePayload
	if _, err := c.do(ctx, http.MethodGet, "/v1/share/"+url.PathEscape(token), nil, &out); err != nil {
		return cv.Payload{}, err
	}
	return cv.DecodeWire(out), nil
}

// List 返回当前用户的 CV 列表。
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	var out struct {
		CVs []Summary `json:"cvs"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/v1/cvs", nil, &out); err != nil {
		return nil, err
	}
	return out.CVs, nil
}

// Delete 删除一份 CV。
func (c *Client) Delete(ctx context.Context, id cv.ID) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/cvs/"+url.PathEscape(string(id)), nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	if c.baseURL == "" {
		return 0, errors.New("cv api base url missing")
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
