package repositories

import (
	"context"
	"fmt"

	"dryfruits/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// List returns matching orders, newest first.
func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items")
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, translate(err, "failed to list orders")
	}
	return orders, nil
}

// GetByID returns an order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order with ID %s", id)
	}
	return &order, nil
}

// GetByPaymentRef returns the order settled by the given gateway payment.
func (r *GORMOrderRepository) GetByPaymentRef(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		First(&order, "gateway_order_id = ? AND gateway_payment_id = ?", gatewayOrderID, gatewayPaymentID).Error
	if err != nil {
		return nil, translate(err, "order for payment %s/%s", gatewayOrderID, gatewayPaymentID)
	}
	return &order, nil
}

// Create inserts the order row and its item snapshot in one transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		return translate(err, "failed to create order %s", order.ID)
	}
	return nil
}

// UpdateStatus performs a compare-and-set on the status column.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return translate(res.Error, "failed to update status of order %s", id)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// MarkShipped records the shipping outcome and the Paid -> Shipped move in a
// single conditional update.
func (r *GORMOrderRepository) MarkShipped(ctx context.Context, id string, outcome models.ShippingOutcome) error {
	var shaped models.Order
	shaped.SetShipping(outcome)

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderPaid).
		Updates(map[string]any{
			"status":          models.OrderShipped,
			"shipping_method": shaped.ShippingMethod,
			"tracking_handle": shaped.TrackingHandle,
			"shipment_id":     shaped.ShipmentID,
		})
	if res.Error != nil {
		return translate(res.Error, "failed to mark order %s shipped", id)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *GORMOrderRepository) missOrConflict(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(err, "failed to look up order %s", id)
	}
	if count == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("order with ID %s: %w", id, ErrStateConflict)
}
