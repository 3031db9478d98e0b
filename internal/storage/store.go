// Package storage keeps the raw bytes of uploaded files.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
)

var (
	ErrNotFound   = errors.New("stored file not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// FileStore saves and opens files by slash separated key.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AccountKey returns the key of an account's file: "<userID>/<filename>".
// filename must already be sanitized.
func AccountKey(userID int, filename string) string {
	return path.Join(strconv.Itoa(userID), filename)
}

func validateKey(key string) error {
	if key == "" || path.IsAbs(key) || path.Clean(key) != key || key == ".." || strings.HasPrefix(key, "../") {
		return ErrInvalidKey
	}
	return nil
}
