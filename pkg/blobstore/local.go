package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes files below a directory that the HTTP server exposes
// under PublicURL.
type LocalStore struct {
	Dir       string
	PublicURL string
}

// NewLocalStore creates a LocalStore.
func NewLocalStore(dir, publicURL string) *LocalStore {
	return &LocalStore{Dir: dir, PublicURL: strings.TrimRight(publicURL, "/")}
}

// Store implements Store.
func (s *LocalStore) Store(ctx context.Context, data []byte, folder, filename, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(folder, filename)
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("blobstore: create folder for %s: %w", key, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write %s: %w", key, err)
	}
	return s.PublicURL + "/" + key, nil
}
