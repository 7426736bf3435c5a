package handlers

import (
	"dryfruits/internal/middleware"
	"dryfruits/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// AddLineRequest is the body of POST /cart/items.
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// SetQuantityRequest is the body of PATCH /cart/items/:productId.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// RegisterRoutes registers the cart routes. Guests and users both have one.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart", middleware.RequireShopper())
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddLine)
	cartRoutes.Patch("/items/:productId", h.HandleSetQuantity)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveLine)
}

// HandleGetCart returns the cart priced at current catalog prices.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	return h.respondPriced(c, fiber.StatusOK)
}

// HandleAddLine adds a product to the cart.
func (h *CartHandler) HandleAddLine(c *fiber.Ctx) error {
	var req AddLineRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateBody(c, req); !ok {
		return err
	}
	if _, err := h.service.AddLine(c.UserContext(), shopperID(c), req.ProductID, req.Quantity); err != nil {
		return respondError(c, err, "Could not add product to cart")
	}
	return h.respondPriced(c, fiber.StatusOK)
}

// HandleSetQuantity replaces a line quantity; zero removes the line.
func (h *CartHandler) HandleSetQuantity(c *fiber.Ctx) error {
	var req SetQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if _, err := h.service.SetLineQuantity(c.UserContext(), shopperID(c), c.Params("productId"), req.Quantity); err != nil {
		return respondError(c, err, "Could not update cart")
	}
	return h.respondPriced(c, fiber.StatusOK)
}

// HandleRemoveLine drops a product from the cart.
func (h *CartHandler) HandleRemoveLine(c *fiber.Ctx) error {
	if _, err := h.service.RemoveLine(c.UserContext(), shopperID(c), c.Params("productId")); err != nil {
		return respondError(c, err, "Could not update cart")
	}
	return h.respondPriced(c, fiber.StatusOK)
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext(), shopperID(c)); err != nil {
		return respondError(c, err, "Could not clear cart")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) respondPriced(c *fiber.Ctx, status int) error {
	priced, err := h.service.PriceCart(c.UserContext(), shopperID(c))
	if err != nil {
		return respondError(c, err, "Could not price cart")
	}
	return c.Status(status).JSON(priced)
}

// shopperID is the id of the principal RequireShopper admitted.
func shopperID(c *fiber.Ctx) string {
	p, _ := middleware.PrincipalFrom(c)
	return p.ID
}
