package validation

import (
	"errors"
	"strings"
)

// maxPathLength caps user-supplied paths well under PATH_MAX on common
// filesystems.
const maxPathLength = 4096

var (
	ErrEmptyPath      = errors.New("path is empty")
	ErrPathTooLong    = errors.New("path is too long")
	ErrPathControlChr = errors.New("path contains control characters")
)

// ValidatePath checks a user-supplied file path before it reaches the
// queue or an external process. Paths travel to ffmpeg/ffprobe argv and
// into logs, so control characters are rejected outright.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if len(path) > maxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r < 32 || r == 127 {
			return ErrPathControlChr
		}
	}
	return nil
}
