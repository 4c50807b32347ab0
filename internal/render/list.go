package render

import (
	"strings"

	"cvPortal/internal/cv"
)

var entryLabels = map[string]fieldDef{
	"school":       {Label: "School", Placeholder: "School name"},
	"major":        {Label: "Major", Placeholder: "Major"},
	"position":     {Label: "Position", Placeholder: "Position"},
	"company":      {Label: "Company", Placeholder: "Company name"},
	"role":         {Label: "Role", Placeholder: "Role"},
	"organization": {Label: "Organization", Placeholder: "Organization name"},
	"start":        {Label: "Start", Placeholder: "Start"},
	"end":          {Label: "End", Placeholder: "End"},
	"time":         {Label: "Time", Placeholder: "Time"},
	"name":         {Label: "Name", Placeholder: "Name"},
	"description":  {Label: "Description", Placeholder: "Description", Multiline: true},
}

// ListRenderer 渲染可重复条目的块（教育、经历、活动、技能、证书、奖项）。
// 每次修改都读出整个列表、改动后整体写回。
type ListRenderer struct {
	blockType cv.BlockType
	shape     cv.ListShape
}

// NewListRenderer 创建列表类块的渲染器；非列表类型会 panic。
func NewListRenderer(t cv.BlockType) *ListRenderer {
	shape, ok := cv.ListShapeFor(t)
	if !ok {
		panic("render: " + string(t) + " is not a list block")
	}
	return &ListRenderer{blockType: t, shape: shape}
}

func (r *ListRenderer) Type() cv.BlockType {
	return r.blockType
}

// Shape 返回条目结构。
func (r *ListRenderer) Shape() cv.ListShape {
	return r.shape
}

// Mount 列表为空时补一个空条目；活动块把旧的 time 区间拆成 start/end。
func (r *ListRenderer) Mount(store BlockStore, blockID string) bool {
	b, err := lookup(store, blockID, r.blockType)
	if err != nil {
		return false
	}
	raw := cv.Entries(b.Data, r.shape.Field)
	if len(raw) == 0 {
		return store.UpdateBlockData(blockID, map[string]any{
			r.shape.Field: []any{r.shape.BlankEntry()},
		})
	}
	if r.blockType != cv.TypeActivity || !needsActivityMigration(raw) {
		return false
	}
	return store.UpdateBlockData(blockID, map[string]any{
		r.shape.Field: toList(r.entries(b.Data)),
	})
}

func (r *ListRenderer) View(b cv.Block, readOnly bool) BlockView {
	v := baseView(b, readOnly)
	v.List = true
	v.ListField = r.shape.Field
	entries := r.entries(b.Data)
	v.Entries = make([]EntryView, 0, len(entries))
	for _, e := range entries {
		ev := EntryView{ID: cv.Value(e, "id"), Fields: make([]FieldView, 0, len(r.shape.Fields))}
		for _, name := range r.shape.Fields {
			def := entryLabels[name]
			def.Name = name
			ev.Fields = append(ev.Fields, fieldView(def, e, readOnly))
		}
		v.Entries = append(v.Entries, ev)
	}
	return v
}

// AddEntry 追加一个带新 ID 的空条目并返回该 ID。
func (r *ListRenderer) AddEntry(store BlockStore, blockID string) (string, error) {
	b, err := lookup(store, blockID, r.blockType)
	if err != nil {
		return "", err
	}
	entries := r.entries(b.Data)
	entry := r.shape.BlankEntry()
	entries = append(entries, entry)
	store.UpdateBlockData(blockID, map[string]any{r.shape.Field: toList(entries)})
	return cv.Value(entry, "id"), nil
}

// RemoveEntry 按 ID 移除条目，允许删到空列表。
func (r *ListRenderer) RemoveEntry(store BlockStore, blockID, entryID string) error {
	b, err := lookup(store, blockID, r.blockType)
	if err != nil {
		return err
	}
	entries := r.entries(b.Data)
	kept := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if cv.Value(e, "id") == entryID {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(entries) {
		return ErrUnknownEntry
	}
	store.UpdateBlockData(blockID, map[string]any{r.shape.Field: toList(kept)})
	return nil
}

// UpdateEntry 修改一个条目的字段，写回整个列表。
func (r *ListRenderer) UpdateEntry(store BlockStore, blockID, entryID, field, value string) error {
	if field == "id" || !r.shape.HasField(field) {
		return ErrUnknownField
	}
	b, err := lookup(store, blockID, r.blockType)
	if err != nil {
		return err
	}
	entries := r.entries(b.Data)
	found := false
	for _, e := range entries {
		if cv.Value(e, "id") == entryID {
			e[field] = value
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownEntry
	}
	store.UpdateBlockData(blockID, map[string]any{r.shape.Field: toList(entries)})
	return nil
}

// entries 返回当前条目；活动块总是以拆分后的形式返回。
func (r *ListRenderer) entries(data map[string]any) []map[string]any {
	raw := cv.Entries(data, r.shape.Field)
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if r.blockType == cv.TypeActivity {
			out = append(out, migrateActivity(e))
			continue
		}
		copied := make(map[string]any, len(e))
		for k, v := range e {
			copied[k] = v
		}
		out = append(out, copied)
	}
	return out
}

func needsActivityMigration(entries []map[string]any) bool {
	for _, e := range entries {
		_, hasTime := e["time"]
		_, hasStart := e["start"]
		_, hasEnd := e["end"]
		if hasTime && !hasStart && !hasEnd {
			return true
		}
	}
	return false
}

func migrateActivity(e map[string]any) map[string]any {
	_, hasStart := e["start"]
	_, hasEnd := e["end"]
	start, end := cv.Value(e, "start"), cv.Value(e, "end")
	if !hasStart && !hasEnd {
		start, end = splitRange(cv.Value(e, "time"))
	}
	return map[string]any{
		"id":           e["id"],
		"role":         cv.Value(e, "role"),
		"organization": cv.Value(e, "organization"),
		"start":        start,
		"end":          end,
		"description":  cv.Value(e, "description"),
	}
}

// splitRange 拆分 "2020 - 2022" 形式的区间。
func splitRange(value string) (string, string) {
	if value == "" {
		return "", ""
	}
	parts := strings.Split(value, "-")
	start := strings.TrimSpace(parts[0])
	end := ""
	if len(parts) > 1 {
		end = strings.TrimSpace(parts[1])
	}
	return start, end
}

func toList(entries []map[string]any) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}
