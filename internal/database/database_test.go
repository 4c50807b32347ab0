package database

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, model := range Models() {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}

	user := User{Username: "alice", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	var got User
	if err := db.First(&got, user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if got.Role != RoleUser {
		t.Fatalf("expected default role %q, got %q", RoleUser, got.Role)
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"error":  logger.Error,
		"info":   logger.Info,
		"":       logger.Warn,
		"debug":  logger.Warn,
	}
	for in, want := range cases {
		if got := logLevel(in); got != want {
			t.Fatalf("logLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
