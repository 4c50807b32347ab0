package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 用户角色。
const (
	RoleUser  = "user"
	RoleLead  = "lead"
	RoleAdmin = "admin"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string `gorm:"size:255"`
	Role         string `gorm:"size:16;default:user"`
	CVs          []CV   `gorm:"constraint:OnDelete:CASCADE"`
}

// CV 表示用户保存的一份简历布局。
// Layout 只保存各区域的块 ID，Blocks 保存块内容。
type CV struct {
	gorm.Model
	Title      string         `gorm:"size:255"`
	Layout     datatypes.JSON `gorm:"type:jsonb"`
	Blocks     datatypes.JSON `gorm:"type:jsonb"`
	Visibility string         `gorm:"size:16;default:private"`
	ShareToken *string        `gorm:"uniqueIndex;size:32"`
	Status     string         `gorm:"size:16"`
	PdfKey     string         `gorm:"size:512"`
	UserID     uint           `gorm:"index"`
	User       User           `gorm:"constraint:OnDelete:CASCADE"`
}

// Models 返回需要自动迁移的模型。
func Models() []any {
	return []any{&User{}, &CV{}}
}
