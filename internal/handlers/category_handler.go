package handlers

import (
	"dryfruits/internal/middleware"
	"dryfruits/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CategoryHandler handles HTTP requests for categories.
type CategoryHandler struct {
	service *services.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(service *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Status string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

// RegisterRoutes registers the category routes.
func (h *CategoryHandler) RegisterRoutes(router fiber.Router) {
	categoryRoutes := router.Group("/categories")
	categoryRoutes.Get("/", h.HandleListCategories)
	categoryRoutes.Get("/:id", h.HandleGetCategory)
	categoryRoutes.Post("/", middleware.AdminOnly(), h.HandleCreateCategory)
}

// HandleListCategories returns one page of categories.
// Query: page (1-based), limit, status.
func (h *CategoryHandler) HandleListCategories(c *fiber.Ctx) error {
	page, err := h.service.ListCategories(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("limit", 10), c.Query("status"))
	if err != nil {
		return respondError(c, err, "Could not retrieve categories")
	}
	return c.JSON(page)
}

// HandleGetCategory retrieves one category.
func (h *CategoryHandler) HandleGetCategory(c *fiber.Ctx) error {
	category, err := h.service.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not retrieve category")
	}
	return c.JSON(category)
}

// HandleCreateCategory creates a category.
func (h *CategoryHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var req CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateBody(c, req); !ok {
		return err
	}
	category, err := h.service.CreateCategory(c.UserContext(), req.Name, req.Status)
	if err != nil {
		return respondError(c, err, "Could not create category")
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}
