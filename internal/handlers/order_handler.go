package handlers

import (
	"fmt"

	"dryfruits/internal/middleware"
	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
	"dryfruits/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service     *services.OrderService
	fulfillment *services.FulfillmentService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, fulfillment *services.FulfillmentService) *OrderHandler {
	return &OrderHandler{
		service:     service,
		fulfillment: fulfillment,
	}
}

// UpdateStatusRequest is the body of PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// FulfillmentRequest is the body of POST /orders/:id/fulfillment.
type FulfillmentRequest struct {
	Method string `json:"method" validate:"required,oneof=Self Carrier"`
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders", middleware.RequireShopper())
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", middleware.AdminOnly(), h.HandleUpdateOrderStatus)
	orderRoutes.Post("/:id/fulfillment", middleware.AdminOnly(), h.HandleAssignFulfillment)
}

// HandleGetOrders lists orders, newest first. Admins see every order and
// may filter by owner and status; everyone else sees their own.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	p, _ := middleware.PrincipalFrom(c)
	filter := repositories.OrderFilter{
		OwnerID: p.ID,
		Status:  models.OrderStatus(c.Query("status")),
	}
	if p.IsAdmin() {
		filter.OwnerID = c.Query("owner")
	}

	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID. Orders of other
// shoppers are reported as not found.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, err, "Could not retrieve order")
	}
	if p, _ := middleware.PrincipalFrom(c); !p.IsAdmin() && order.OwnerID != p.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Order with ID %s not found", orderID),
		})
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves an order through the status guard.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateBody(c, req); !ok {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, models.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, err, "Could not update order status")
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, req.Status),
		"order":   order,
	})
}

// HandleAssignFulfillment ships a paid order by the store or the carrier.
func (h *OrderHandler) HandleAssignFulfillment(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req FulfillmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateBody(c, req); !ok {
		return err
	}

	order, err := h.fulfillment.Assign(c.UserContext(), orderID, models.ShippingMethod(req.Method))
	if err != nil {
		return respondError(c, err, "Could not assign fulfillment")
	}
	return c.JSON(order)
}
