package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"dryfruits/pkg/blobstore"

	"github.com/gabriel-vasile/mimetype"
)

// UploadFolder is where product images are stored.
const UploadFolder = "products"

// maxUploadBytes bounds a single uploaded file.
const maxUploadBytes = 5 << 20

// UploadFile is one file received from a client. ContentType is what the
// client claimed; the stored type is detected from Data.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadService stores product images in the blob store.
type UploadService struct {
	store blobstore.Store
}

// NewUploadService creates a new UploadService.
func NewUploadService(store blobstore.Store) *UploadService {
	return &UploadService{store: store}
}

// Upload stores files in order and returns their URLs. The first failure
// aborts the batch.
func (s *UploadService) Upload(ctx context.Context, files []UploadFile) ([]string, error) {
	if len(files) == 0 {
		return nil, invalidf("no files uploaded")
	}
	contentTypes := make([]string, len(files))
	for i, f := range files {
		if len(f.Data) == 0 {
			return nil, invalidf("file %s is empty", f.Filename)
		}
		if len(f.Data) > maxUploadBytes {
			return nil, invalidf("file %s exceeds %d bytes", f.Filename, maxUploadBytes)
		}
		detected, ok := imageType(f.Data)
		if !ok {
			return nil, invalidf("file %s is not an image", f.Filename)
		}
		contentTypes[i] = detected
	}

	urls := make([]string, 0, len(files))
	for i, f := range files {
		url, err := s.store.Store(ctx, f.Data, UploadFolder, f.Filename, contentTypes[i])
		if err != nil {
			log.Printf("Upload of %s failed: %v", f.Filename, err)
			return nil, fmt.Errorf("failed to store %s: %w: %w", f.Filename, ErrPersistence, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// imageType sniffs data and reports its MIME type when it is a raster image.
// SVG is refused.
func imageType(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	if detected.Is("image/svg+xml") {
		return "", false
	}
	contentType := detected.String()
	return contentType, strings.HasPrefix(contentType, "image/")
}
