package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestIsNoSuchKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "minio code", err: fmt.Errorf("stat: %w", minio.ErrorResponse{Code: "NoSuchKey"}), want: true},
		{name: "string form", err: errors.New("The specified key does not exist."), want: true},
		{name: "other", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoSuchKey(tt.err); got != tt.want {
				t.Fatalf("IsNoSuchKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	if got := GeneratedCVKey(7, "abc"); got != "generated-cvs/7/abc.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := AvatarKey(7, "a.png"); got != "avatars/7/a.png" {
		t.Fatalf("unexpected key %q", got)
	}
}
