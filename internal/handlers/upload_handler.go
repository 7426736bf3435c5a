package handlers

import (
	"fmt"
	"io"

	"dryfruits/internal/middleware"
	"dryfruits/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UploadHandler accepts product image uploads.
type UploadHandler struct {
	service *services.UploadService
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// RegisterRoutes registers the upload route.
func (h *UploadHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/uploads", middleware.AdminOnly(), h.HandleUpload)
}

// HandleUpload stores every file of the multipart "files" field.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badBody(c, err)
	}

	headers := form.File["files"]
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return badBody(c, fmt.Errorf("open %s: %w", fh.Filename, err))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return badBody(c, fmt.Errorf("read %s: %w", fh.Filename, err))
		}
		files = append(files, services.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}

	urls, err := h.service.Upload(c.UserContext(), files)
	if err != nil {
		return respondError(c, err, "Upload failed")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Files uploaded successfully",
		"urls":    urls,
	})
}
