package render

import (
	"cvPortal/internal/cv"
)

type fieldDef struct {
	Name        string
	Label       string
	Placeholder string
	Multiline   bool
}

// FieldRenderer 渲染单实体块（个人信息、名片、职业目标）。
type FieldRenderer struct {
	blockType cv.BlockType
	fields    []fieldDef
}

func newProfileRenderer() *FieldRenderer {
	return &FieldRenderer{
		blockType: cv.TypeProfile,
		fields: []fieldDef{
			{Name: "dob", Label: "Date of birth", Placeholder: "DD/MM/YYYY"},
			{Name: "gender", Label: "Gender", Placeholder: "Male/Female"},
			{Name: "phone", Label: "Phone", Placeholder: "0123 456 789"},
			{Name: "email", Label: "Email", Placeholder: "example@gmail.com"},
			{Name: "address", Label: "Address", Placeholder: "Enter your address"},
		},
	}
}

func newBusinessCardRenderer() *FieldRenderer {
	return &FieldRenderer{
		blockType: cv.TypeBusinessCard,
		fields: []fieldDef{
			{Name: "fullName", Label: "Full name", Placeholder: "Full name"},
			{Name: "position", Label: "Position", Placeholder: "Position applied for"},
		},
	}
}

func newCareerRenderer() *FieldRenderer {
	return &FieldRenderer{
		blockType: cv.TypeCareer,
		fields: []fieldDef{
			{Name: "shortTerm", Label: "Short-term goal", Placeholder: "Enter your short-term goal", Multiline: true},
			{Name: "longTerm", Label: "Long-term goal", Placeholder: "Enter your long-term goal", Multiline: true},
		},
	}
}

func (r *FieldRenderer) Type() cv.BlockType {
	return r.blockType
}

// Mount 单实体块没有需要补齐的数据。
func (r *FieldRenderer) Mount(BlockStore, string) bool {
	return false
}

func (r *FieldRenderer) View(b cv.Block, readOnly bool) BlockView {
	v := baseView(b, readOnly)
	v.Fields = make([]FieldView, 0, len(r.fields))
	for _, f := range r.fields {
		v.Fields = append(v.Fields, fieldView(f, b.Data, readOnly))
	}
	return v
}

// SetField 以浅合并方式写入单个字段。
func (r *FieldRenderer) SetField(store BlockStore, blockID, field, value string) error {
	if !r.hasField(field) {
		return ErrUnknownField
	}
	if _, err := lookup(store, blockID, r.blockType); err != nil {
		return err
	}
	store.UpdateBlockData(blockID, map[string]any{field: value})
	return nil
}

func (r *FieldRenderer) hasField(name string) bool {
	for _, f := range r.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func fieldView(f fieldDef, data map[string]any, readOnly bool) FieldView {
	return FieldView{
		Name:        f.Name,
		Label:       f.Label,
		Value:       cv.Value(data, f.Name),
		Placeholder: f.Placeholder,
		Multiline:   f.Multiline,
		ReadOnly:    readOnly,
	}
}
