package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "absolute path",
			path:    "/media/library/show.mkv",
			wantErr: nil,
		},
		{
			name:    "path with spaces and unicode",
			path:    "/media/ビデオ/my show 01.mkv",
			wantErr: nil,
		},
		{
			name:    "empty",
			path:    "",
			wantErr: ErrEmptyPath,
		},
		{
			name:    "whitespace only",
			path:    "   ",
			wantErr: ErrEmptyPath,
		},
		{
			name:    "too long",
			path:    "/" + strings.Repeat("a", 4096),
			wantErr: ErrPathTooLong,
		},
		{
			name:    "null byte",
			path:    "/media/\x00.mkv",
			wantErr: ErrPathControlChr,
		},
		{
			name:    "newline",
			path:    "/media/a\nb.mkv",
			wantErr: ErrPathControlChr,
		},
		{
			name:    "escape sequence",
			path:    "/media/\x1b[31m.mkv",
			wantErr: ErrPathControlChr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
