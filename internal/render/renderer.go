package render

import (
	"errors"

	"cvPortal/internal/cv"
)

var (
	ErrUnknownBlock   = errors.New("block not found")
	ErrWrongType      = errors.New("block type does not match renderer")
	ErrUnknownEntry   = errors.New("entry not found")
	ErrUnknownField   = errors.New("unknown field")
	ErrUploadInFlight = errors.New("avatar upload already in progress")
	ErrNoImageHost    = errors.New("image host not configured")
)

// BlockStore 是渲染器读写块数据的窄接口，由 cv.Store 实现。
type BlockStore interface {
	Block(id string) (cv.Block, bool)
	UpdateBlockData(id string, patch map[string]any) bool
	SetBlockData(id string, data map[string]any) bool
}

// Renderer 负责一种块类型的挂载与展示。
type Renderer interface {
	Type() cv.BlockType
	// Mount 在块进入可打印区域时调用一次，返回是否修改了数据。
	Mount(store BlockStore, blockID string) bool
	View(b cv.Block, readOnly bool) BlockView
}

// FieldEditor 修改单实体块的字段。
type FieldEditor interface {
	SetField(store BlockStore, blockID, field, value string) error
}

// FieldView 是一个表单字段的展示数据。
type FieldView struct {
	Name        string
	Label       string
	Value       string
	Placeholder string
	Multiline   bool
	ReadOnly    bool
}

// EntryView 是列表块中一行条目的展示数据。
type EntryView struct {
	ID     string
	Fields []FieldView
}

// BlockView 是模板渲染一个块所需的全部数据。
// 编辑与只读两种模式共用同一份数据，只在交互控件上有差别。
type BlockView struct {
	ID          string
	Type        cv.BlockType
	Title       string
	ShowHeading bool
	ReadOnly    bool
	Unsupported bool

	Fields []FieldView

	List      bool
	ListField string
	Entries   []EntryView

	Avatar    bool
	Image     string
	Uploading bool
}

func baseView(b cv.Block, readOnly bool) BlockView {
	return BlockView{
		ID:          b.ID,
		Type:        b.Type,
		Title:       b.Title,
		ShowHeading: !cv.HeadingSuppressed(b.Type),
		ReadOnly:    readOnly,
	}
}

func lookup(store BlockStore, blockID string, t cv.BlockType) (cv.Block, error) {
	b, ok := store.Block(blockID)
	if !ok {
		return cv.Block{}, ErrUnknownBlock
	}
	if b.Type != t {
		return cv.Block{}, ErrWrongType
	}
	return b, nil
}

// Registry 持有全部块类型的渲染器。头像上传状态按块记录，因此每个编辑会话各持一份。
type Registry struct {
	renderers map[cv.BlockType]Renderer
	avatar    *AvatarRenderer
}

// NewRegistry 创建渲染器集合；host 为 nil 时头像上传不可用。
func NewRegistry(host ImageHost) *Registry {
	avatar := NewAvatarRenderer(host)
	r := &Registry{
		renderers: make(map[cv.BlockType]Renderer, len(cv.AllTypes)),
		avatar:    avatar,
	}
	r.add(newProfileRenderer())
	r.add(newBusinessCardRenderer())
	r.add(newCareerRenderer())
	r.add(avatar)
	for _, t := range []cv.BlockType{
		cv.TypeEducation, cv.TypeExperience, cv.TypeActivity,
		cv.TypeSkill, cv.TypeCertificate, cv.TypeAward,
	} {
		r.add(NewListRenderer(t))
	}
	return r
}

func (r *Registry) add(renderer Renderer) {
	r.renderers[renderer.Type()] = renderer
}

// For 返回类型对应的渲染器。
func (r *Registry) For(t cv.BlockType) (Renderer, bool) {
	renderer, ok := r.renderers[t]
	return renderer, ok
}

// List 返回列表类块的渲染器。
func (r *Registry) List(t cv.BlockType) (*ListRenderer, bool) {
	renderer, ok := r.renderers[t].(*ListRenderer)
	return renderer, ok
}

// Fields 返回单实体块的字段编辑器。
func (r *Registry) Fields(t cv.BlockType) (FieldEditor, bool) {
	editor, ok := r.renderers[t].(FieldEditor)
	return editor, ok
}

// Avatar 返回头像渲染器。
func (r *Registry) Avatar() *AvatarRenderer {
	return r.avatar
}

// Mount 按块类型调用对应渲染器的挂载逻辑。
func (r *Registry) Mount(store BlockStore, blockID string) bool {
	b, ok := store.Block(blockID)
	if !ok {
		return false
	}
	renderer, ok := r.For(b.Type)
	if !ok {
		return false
	}
	return renderer.Mount(store, blockID)
}

// View 渲染块的展示数据；未知类型得到占位视图。
func (r *Registry) View(b cv.Block, readOnly bool) BlockView {
	renderer, ok := r.For(b.Type)
	if !ok {
		v := baseView(b, readOnly)
		v.Unsupported = true
		return v
	}
	return renderer.View(b, readOnly)
}
