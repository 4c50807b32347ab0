package cv

// BlockType 是 CV 内容块的类型标签，集合封闭。
type BlockType string

const (
	TypeProfile      BlockType = "profile"
	TypeEducation    BlockType = "education"
	TypeExperience   BlockType = "experience"
	TypeSkill        BlockType = "skill"
	TypeCertificate  BlockType = "certificate"
	TypeAward        BlockType = "award"
	TypeActivity     BlockType = "activity"
	TypeCareer       BlockType = "career"
	TypeBusinessCard BlockType = "businesscard"
	TypeAvatar       BlockType = "avatar"
)

// AllTypes 按目录种子顺序列出全部块类型。
var AllTypes = []BlockType{
	TypeCareer,
	TypeEducation,
	TypeExperience,
	TypeAward,
	TypeActivity,
	TypeBusinessCard,
	TypeAvatar,
	TypeProfile,
	TypeSkill,
	TypeCertificate,
}

// Valid 判断类型是否属于已知集合。
func (t BlockType) Valid() bool {
	switch t {
	case TypeProfile, TypeEducation, TypeExperience, TypeSkill, TypeCertificate,
		TypeAward, TypeActivity, TypeCareer, TypeBusinessCard, TypeAvatar:
		return true
	}
	return false
}

// ParseBlockType 将字符串解析为已知块类型。
func ParseBlockType(s string) (BlockType, bool) {
	t := BlockType(s)
	return t, t.Valid()
}

// Zone 表示块所在的区域：左栏、右栏或未使用池。
type Zone string

const (
	ZoneLeft   Zone = "left"
	ZoneRight  Zone = "right"
	ZoneUnused Zone = "unused"
)

// Zones 是固定的区域遍历顺序，查找块时先匹配者优先。
var Zones = []Zone{ZoneLeft, ZoneRight, ZoneUnused}

// ParseZone 将字符串解析为区域。
func ParseZone(s string) (Zone, bool) {
	switch z := Zone(s); z {
	case ZoneLeft, ZoneRight, ZoneUnused:
		return z, true
	}
	return "", false
}

// Printable 表示该区域是否出现在预览/打印中。
func (z Zone) Printable() bool {
	return z == ZoneLeft || z == ZoneRight
}

// Block 是一个可放置的 CV 内容单元。
// ID 创建后不变；Data 的结构由 Type 决定。
type Block struct {
	ID    string         `json:"id"`
	Type  BlockType      `json:"type"`
	Title string         `json:"title"`
	Data  map[string]any `json:"data"`
}

// Clone 深拷贝块，Data 中的嵌套 map/slice 同样复制。
func (b Block) Clone() Block {
	b.Data = cloneMap(b.Data)
	return b
}

// Layout 是聚合根：两栏可打印区域加未使用池。
type Layout struct {
	Left   []Block `json:"left"`
	Right  []Block `json:"right"`
	Unused []Block `json:"unused"`
}

// Zone 返回指定区域的块列表。
func (l Layout) Zone(z Zone) []Block {
	switch z {
	case ZoneLeft:
		return l.Left
	case ZoneRight:
		return l.Right
	case ZoneUnused:
		return l.Unused
	}
	return nil
}

func (l *Layout) setZone(z Zone, blocks []Block) {
	switch z {
	case ZoneLeft:
		l.Left = blocks
	case ZoneRight:
		l.Right = blocks
	case ZoneUnused:
		l.Unused = blocks
	}
}

// Clone 深拷贝整个布局。
func (l Layout) Clone() Layout {
	return Layout{
		Left:   cloneBlocks(l.Left),
		Right:  cloneBlocks(l.Right),
		Unused: cloneBlocks(l.Unused),
	}
}

// All 按 left、right、unused 顺序返回全部块。
func (l Layout) All() []Block {
	all := make([]Block, 0, len(l.Left)+len(l.Right)+len(l.Unused))
	all = append(all, l.Left...)
	all = append(all, l.Right...)
	all = append(all, l.Unused...)
	return all
}

// Printed 返回两栏中的块，即预览与校验覆盖的范围。
func (l Layout) Printed() []Block {
	printed := make([]Block, 0, len(l.Left)+len(l.Right))
	printed = append(printed, l.Left...)
	printed = append(printed, l.Right...)
	return printed
}

// Locate 查找块所在区域及下标。
func (l Layout) Locate(id string) (Zone, int, bool) {
	for _, z := range Zones {
		for i, b := range l.Zone(z) {
			if b.ID == id {
				return z, i, true
			}
		}
	}
	return "", -1, false
}

// Find 返回指定 ID 的块。
func (l Layout) Find(id string) (Block, bool) {
	z, i, ok := l.Locate(id)
	if !ok {
		return Block{}, false
	}
	return l.Zone(z)[i], true
}

// HasType 判断两栏中是否存在某类型的块。
func (l Layout) HasType(t BlockType) bool {
	for _, b := range l.Printed() {
		if b.Type == t {
			return true
		}
	}
	return false
}

func cloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return []Block{}
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneMap(e)
		}
		return out
	default:
		return v
	}
}
