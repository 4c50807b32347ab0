package cv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ecodeclub/ekit/slice"
)

// Visibility 控制分享链接是否可访问。
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ParseVisibility 解析可见性，未知值按 private 处理。
func ParseVisibility(s string) Visibility {
	if strings.EqualFold(strings.TrimSpace(s), string(VisibilityPublic)) {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// Status 是审核状态。
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Valid 报告是否为已知审核状态。
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ID 是服务端分配的 CV 标识，空值表示尚未保存。
// 序列化时空值输出 null，纯数字输出数字，其余输出字符串。
type ID string

// IsZero 表示新建、尚未持久化。
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// Uint 将 ID 解析为数据库主键。
func (id ID) Uint() (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(string(id)), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// IDFromUint 由数据库主键构造 ID。
func IDFromUint(v uint) ID {
	if v == 0 {
		return ""
	}
	return ID(strconv.FormatUint(uint64(v), 10))
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	// 前导零等非规范写法按解析后的数值输出。
	if v, ok := id.Uint(); ok {
		return []byte(strconv.FormatUint(uint64(v), 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid cv id %s: %w", data, err)
		}
		*id = ID(n.String())
		return nil
	}
}

// IDLayout 是持久化形式的布局：每个区域只保存块 ID。
type IDLayout struct {
	Left   []string `json:"left"`
	Right  []string `json:"right"`
	Unused []string `json:"unused"`
}

// Payload 是保存/加载使用的完整 CV 表示。
type Payload struct {
	ID         ID         `json:"id"`
	Title      string     `json:"title"`
	Status     Status     `json:"status,omitempty"`
	Layout     IDLayout   `json:"layout"`
	Blocks     []Block    `json:"blocks"`
	Visibility Visibility `json:"visibility"`
}

// ToPayload 将三区布局展开为扁平块数组与按区排列的 ID 列表。
func ToPayload(title string, id ID, layout Layout) Payload {
	seen := make(map[string]struct{})
	blocks := make([]Block, 0, len(layout.Left)+len(layout.Right)+len(layout.Unused))
	for _, b := range layout.All() {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		blocks = append(blocks, b.Clone())
	}
	return Payload{
		ID:    id,
		Title: title,
		Layout: IDLayout{
			Left:   blockIDs(layout.Left),
			Right:  blockIDs(layout.Right),
			Unused: blockIDs(layout.Unused),
		},
		Blocks:     blocks,
		Visibility: VisibilityPrivate,
	}
}

func blockIDs(blocks []Block) []string {
	return slice.Map(blocks, func(_ int, b Block) string {
		return b.ID
	})
}

// FromPayload 按 ID 回查重建三区布局。
// 找不到对应块的 ID 被丢弃；未被任何区域认领的块追加到 unused。
func FromPayload(p Payload) Layout {
	lookup := make(map[string]Block, len(p.Blocks))
	order := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		if b.ID == "" {
			continue
		}
		if _, ok := lookup[b.ID]; !ok {
			order = append(order, b.ID)
		}
		if b.Data == nil {
			b.Data = map[string]any{}
		}
		lookup[b.ID] = b
	}

	claimed := make(map[string]struct{}, len(lookup))
	resolve := func(ids []string) []Block {
		out := make([]Block, 0, len(ids))
		for _, id := range ids {
			b, ok := lookup[id]
			if !ok {
				continue
			}
			if _, dup := claimed[id]; dup {
				continue
			}
			claimed[id] = struct{}{}
			out = append(out, b.Clone())
		}
		return out
	}

	layout := Layout{
		Left:   resolve(p.Layout.Left),
		Right:  resolve(p.Layout.Right),
		Unused: resolve(p.Layout.Unused),
	}
	for _, id := range order {
		if _, ok := claimed[id]; ok {
			continue
		}
		layout.Unused = append(layout.Unused, lookup[id].Clone())
	}
	return layout
}

// Fingerprint 返回 payload 的规范 JSON 字符串，用于脏检查。
// map 键在编码时排序，因此同一状态总是得到同一字符串。
func Fingerprint(p Payload) string {
	raw, err := json.Marshal(normalize(p))
	if err != nil {
		return ""
	}
	return string(raw)
}

func normalize(p Payload) Payload {
	if p.Layout.Left == nil {
		p.Layout.Left = []string{}
	}
	if p.Layout.Right == nil {
		p.Layout.Right = []string{}
	}
	if p.Layout.Unused == nil {
		p.Layout.Unused = []string{}
	}
	if p.Blocks == nil {
		p.Blocks = []Block{}
	}
	return p
}

// WirePayload 是传输边界上的 payload：layout 与 blocks 可能是结构化 JSON，
// 也可能是包含 JSON 的字符串。
type WirePayload struct {
	ID         ID              `json:"id"`
	Title      string          `json:"title"`
	Status     Status          `json:"status,omitempty"`
	Layout     json.RawMessage `json:"layout"`
	Blocks     json.RawMessage `json:"blocks"`
	Visibility string          `json:"visibility,omitempty"`
}

// DecodeWire 在边界处一次性解析 layout 与 blocks。
// 无法解析的字段按缺失处理，不返回错误；未携带 visibility 时保持为空，由存储层沿用已有值。
func DecodeWire(w WirePayload) Payload {
	p := Payload{
		ID:     w.ID,
		Title:  w.Title,
		Status: w.Status,
	}
	if strings.TrimSpace(w.Visibility) != "" {
		p.Visibility = ParseVisibility(w.Visibility)
	}
	var layout IDLayout
	if decodeMaybeString(w.Layout, &layout) {
		p.Layout = layout
	}
	var blocks []Block
	if decodeMaybeString(w.Blocks, &blocks) {
		p.Blocks = blocks
	}
	return normalize(p)
}

// EncodeWire 生成传输形式；stringEncoded 为 true 时 layout 与 blocks 以 JSON 字符串发送。
func EncodeWire(p Payload, stringEncoded bool) (WirePayload, error) {
	p = normalize(p)
	layout, err := encodeField(p.Layout, stringEncoded)
	if err != nil {
		return WirePayload{}, fmt.Errorf("encode layout: %w", err)
	}
	blocks, err := encodeField(p.Blocks, stringEncoded)
	if err != nil {
		return WirePayload{}, fmt.Errorf("encode blocks: %w", err)
	}
	return WirePayload{
		ID:         p.ID,
		Title:      p.Title,
		Status:     p.Status,
		Layout:     layout,
		Blocks:     blocks,
		Visibility: string(p.Visibility),
	}, nil
}

func encodeField(v any, stringEncoded bool) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !stringEncoded {
		return raw, nil
	}
	return json.Marshal(string(raw))
}

func decodeMaybeString(raw json.RawMessage, dst any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return false
		}
		raw = json.RawMessage(s)
	}
	return json.Unmarshal(raw, dst) == nil
}
