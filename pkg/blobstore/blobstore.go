// Package blobstore stores uploaded files and hands back a stable URL.
package blobstore

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists one file under a folder hint and returns its URL.
type Store interface {
	Store(ctx context.Context, data []byte, folder, filename, contentType string) (string, error)
}

// objectKey builds a collision-free key that keeps the original extension.
func objectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
}
