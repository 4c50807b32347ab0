package cv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// 校验顺序固定，第一个失败即返回。
var validationOrder = []BlockType{
	TypeProfile,
	TypeSkill,
	TypeBusinessCard,
	TypeAvatar,
	TypeCareer,
	TypeEducation,
	TypeExperience,
	TypeActivity,
	TypeAward,
	TypeCertificate,
}

const (
	msgProfileIncomplete = "Please fill in all personal information."
	msgEmailInvalid      = "Email address is not valid."
	msgFullNameMissing   = "Please enter your full name."
	msgAvatarMissing     = "Please choose an avatar image."
	msgCareerIncomplete  = "Please fill in your career objectives."
)

// ValidationError 是保存前校验失败的用户可读提示。
type ValidationError struct {
	Type    BlockType
	BlockID string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate 对两栏中出现的块执行保存前校验，unused 中的块不参与。
func Validate(layout Layout) error {
	printed := layout.Printed()
	for _, t := range validationOrder {
		for _, b := range printed {
			if b.Type != t {
				continue
			}
			if msg := validateBlock(b); msg != "" {
				return &ValidationError{Type: b.Type, BlockID: b.ID, Message: msg}
			}
		}
	}
	return nil
}

func validateBlock(b Block) string {
	switch b.Type {
	case TypeProfile:
		return validateProfile(b.Data)
	case TypeBusinessCard:
		if Text(b.Data, "fullName") == "" {
			return msgFullNameMissing
		}
	case TypeAvatar:
		if Text(b.Data, "image") == "" {
			return msgAvatarMissing
		}
	case TypeCareer:
		if Text(b.Data, "shortTerm") == "" || Text(b.Data, "longTerm") == "" {
			return msgCareerIncomplete
		}
	case TypeSkill, TypeEducation, TypeExperience, TypeActivity, TypeAward, TypeCertificate:
		shape, _ := ListShapeFor(b.Type)
		return validateEntries(shape, b.Data)
	}
	return ""
}

func validateProfile(data map[string]any) string {
	for _, f := range []string{"dob", "gender", "phone", "email", "address"} {
		if Text(data, f) == "" {
			return msgProfileIncomplete
		}
	}
	if !emailPattern.MatchString(Text(data, "email")) {
		return msgEmailInvalid
	}
	return ""
}

// 空列表允许保存；存在条目时每个条目的必填字段都不能为空。
func validateEntries(shape ListShape, data map[string]any) string {
	for _, entry := range Entries(data, shape.Field) {
		for _, f := range shape.Required {
			if Text(entry, f) == "" {
				return shape.Message
			}
		}
	}
	return ""
}

// Text 读取字段并转换为去除首尾空白的字符串，缺失或 nil 视为空串。
func Text(data map[string]any, key string) string {
	return strings.TrimSpace(Value(data, key))
}

// Value 读取字段的原始字符串形式。
func Value(data map[string]any, key string) string {
	return stringify(data[key])
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Entries 读取列表字段中的条目，非对象元素以空条目对待。
func Entries(data map[string]any, field string) []map[string]any {
	switch list := data[field].(type) {
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, e := range list {
			m, ok := e.(map[string]any)
			if !ok {
				m = map[string]any{}
			}
			out = append(out, m)
		}
		return out
	case []map[string]any:
		return list
	}
	return nil
}
