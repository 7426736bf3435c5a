package handlers

import (
	"dryfruits/internal/middleware"
	"dryfruits/internal/models"
	"dryfruits/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler handles payment intent creation and payment confirmation.
type CheckoutHandler struct {
	service *services.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(service *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// BeginCheckoutRequest is the body of POST /checkout/intent.
type BeginCheckoutRequest struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
}

// RegisterRoutes registers the checkout routes. Confirmation is
// authenticated by the gateway signature, not by the caller.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Post("/intent", middleware.RequireShopper(), h.HandleBeginCheckout)
	checkoutRoutes.Post("/confirm", h.HandleConfirm)
}

// HandleBeginCheckout prices the cart and opens a gateway intent.
func (h *CheckoutHandler) HandleBeginCheckout(c *fiber.Ctx) error {
	var req BeginCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateBody(c, req); !ok {
		return err
	}

	session, err := h.service.BeginCheckout(c.UserContext(), shopperID(c), req.ShippingAddress)
	if err != nil {
		return respondError(c, err, "Could not start checkout")
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleConfirm turns the gateway's completion callback into an order.
// A repeated callback answers 200 with the existing order.
func (h *CheckoutHandler) HandleConfirm(c *fiber.Ctx) error {
	var req services.Confirmation
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateBody(c, req); !ok {
		return err
	}

	order, duplicate, err := h.service.Complete(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Payment confirmation failed")
	}
	if duplicate {
		return c.JSON(fiber.Map{
			"message":   "Payment already confirmed",
			"duplicate": true,
			"order":     order,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Order placed successfully",
		"duplicate": false,
		"order":     order,
	})
}
