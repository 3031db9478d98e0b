package utils

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrInvalidFilename = errors.New("invalid file name")

const (
	maxFilenameLength = 200
	// maxExtensionLength matches the width of uploads.file_type.
	maxExtensionLength = 20
)

// SanitizeFilename reduces a client supplied name to a safe base name.
// Directory components are dropped and characters outside [A-Za-z0-9._-]
// are replaced with '_'. Names whose extension is longer than
// maxExtensionLength are rejected.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "/" || name == "." || name == ".." {
		return "", ErrInvalidFilename
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	clean := b.String()

	if strings.Trim(clean, ".") == "" {
		return "", ErrInvalidFilename
	}
	ext := filepath.Ext(clean)
	if len(ext) > maxExtensionLength+1 {
		return "", ErrInvalidFilename
	}
	if len(clean) > maxFilenameLength {
		clean = clean[:maxFilenameLength-len(ext)] + ext
	}
	return clean, nil
}
