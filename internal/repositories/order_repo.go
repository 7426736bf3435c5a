package repositories

import (
	"context"

	"dryfruits/internal/models"
)

// OrderFilter narrows an order listing. Zero fields match everything.
type OrderFilter struct {
	OwnerID string
	Status  models.OrderStatus
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByPaymentRef(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Order, error)
	// Create inserts the order and its items atomically. A second order for
	// the same payment reference fails with ErrDuplicate.
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus moves the order from -> to, failing with ErrStateConflict
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	// MarkShipped records outcome and moves a Paid order to Shipped.
	MarkShipped(ctx context.Context, id string, outcome models.ShippingOutcome) error
}
