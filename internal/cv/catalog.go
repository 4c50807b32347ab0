package cv

import (
	"strings"

	"github.com/google/uuid"
)

// CatalogEntry 描述目录中一种块的默认信息。
type CatalogEntry struct {
	Type  BlockType
	Title string
}

var catalog = []CatalogEntry{
	{Type: TypeCareer, Title: "Career objective"},
	{Type: TypeEducation, Title: "Education"},
	{Type: TypeExperience, Title: "Work experience"},
	{Type: TypeAward, Title: "Awards"},
	{Type: TypeActivity, Title: "Activities"},
	{Type: TypeBusinessCard, Title: "Business card"},
	{Type: TypeAvatar, Title: "Avatar"},
	{Type: TypeProfile, Title: "Personal information"},
	{Type: TypeSkill, Title: "Skills"},
	{Type: TypeCertificate, Title: "Certificates"},
}

var (
	defaultLeft  = []BlockType{TypeBusinessCard, TypeAvatar, TypeProfile, TypeSkill, TypeCertificate}
	defaultRight = []BlockType{TypeCareer, TypeEducation, TypeExperience, TypeAward, TypeActivity}
)

// Catalog 返回目录条目的副本。
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// Title 返回块类型的默认标题。
func Title(t BlockType) string {
	for _, e := range catalog {
		if e.Type == t {
			return e.Title
		}
	}
	return string(t)
}

// HeadingSuppressed 表示预览中不显示标题的类型。
func HeadingSuppressed(t BlockType) bool {
	return t == TypeBusinessCard || t == TypeAvatar
}

// ListShape 描述可重复列表类块的条目结构。
type ListShape struct {
	// Field 是 data 中保存条目数组的键。
	Field    string
	Fields   []string
	Required []string
	// Message 是条目不完整时的提示。
	Message string
}

var listShapes = map[BlockType]ListShape{
	TypeEducation: {
		Field:    "educations",
		Fields:   []string{"school", "major", "start", "end", "description"},
		Required: []string{"school", "major", "start", "end"},
		Message:  "Please fill in your education details.",
	},
	TypeExperience: {
		Field:    "jobs",
		Fields:   []string{"position", "company", "start", "end", "description"},
		Required: []string{"position", "company", "start", "end"},
		Message:  "Please fill in your work experience.",
	},
	TypeActivity: {
		Field:    "activities",
		Fields:   []string{"role", "organization", "start", "end", "description"},
		Required: []string{"role", "organization", "start", "end"},
		Message:  "Please fill in your activity details.",
	},
	TypeSkill: {
		Field:    "skills",
		Fields:   []string{"name", "description"},
		Required: []string{"name"},
		Message:  "Please fill in the missing skill info.",
	},
	TypeCertificate: {
		Field:    "certificates",
		Fields:   []string{"time", "name"},
		Required: []string{"time", "name"},
		Message:  "Please fill in your certificate details.",
	},
	TypeAward: {
		Field:    "awards",
		Fields:   []string{"time", "name"},
		Required: []string{"time", "name"},
		Message:  "Please fill in your award details.",
	},
}

// ListShapeFor 返回列表类块的条目结构；非列表类型返回 false。
func ListShapeFor(t BlockType) (ListShape, bool) {
	shape, ok := listShapes[t]
	return shape, ok
}

// NewEntryID 生成条目 ID。
func NewEntryID() string {
	return uuid.NewString()
}

// BlankEntry 生成一个带新 ID 的空条目。
func (s ListShape) BlankEntry() map[string]any {
	entry := make(map[string]any, len(s.Fields)+1)
	entry["id"] = NewEntryID()
	for _, f := range s.Fields {
		entry[f] = ""
	}
	return entry
}

// HasField 判断字段是否属于条目结构。
func (s ListShape) HasField(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// DefaultData 返回新建块时的默认 data。
// activity 不预置条目，由渲染器挂载时补齐。
func DefaultData(t BlockType) map[string]any {
	if t == TypeActivity {
		return map[string]any{}
	}
	shape, ok := listShapes[t]
	if !ok {
		return map[string]any{}
	}
	return map[string]any{shape.Field: []any{shape.BlankEntry()}}
}

// NewBlock 以目录默认值构造块。
func NewBlock(id string, t BlockType, title string) Block {
	if strings.TrimSpace(title) == "" {
		title = Title(t)
	}
	return Block{ID: id, Type: t, Title: title, Data: DefaultData(t)}
}

// CatalogBlock 构造目录种子块，ID 与类型标签一致。
func CatalogBlock(t BlockType) Block {
	return NewBlock(string(t), t, Title(t))
}

// DefaultLayout 返回内置默认布局：固定左右两栏，其余目录块进入未使用池。
func DefaultLayout() Layout {
	layout := Layout{
		Left:   make([]Block, 0, len(defaultLeft)),
		Right:  make([]Block, 0, len(defaultRight)),
		Unused: []Block{},
	}
	placed := make(map[BlockType]struct{}, len(catalog))
	for _, t := range defaultLeft {
		layout.Left = append(layout.Left, CatalogBlock(t))
		placed[t] = struct{}{}
	}
	for _, t := range defaultRight {
		layout.Right = append(layout.Right, CatalogBlock(t))
		placed[t] = struct{}{}
	}
	for _, e := range catalog {
		if _, ok := placed[e.Type]; ok {
			continue
		}
		layout.Unused = append(layout.Unused, CatalogBlock(e.Type))
	}
	return layout
}
