package services

import (
	"encoding/json"
	"log"
	"time"

	"dryfruits/internal/models"
)

// Routing keys of the order events.
const (
	EventOrderPaid          = "order.paid"
	EventOrderShipped       = "order.shipped"
	EventOrderStatusChanged = "order.status_changed"
)

// EventPublisher sends an event body under a routing key.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	OrderID        string             `json:"order_id"`
	OwnerID        string             `json:"owner_id"`
	Status         models.OrderStatus `json:"status"`
	Amount         string             `json:"amount"`
	ShippingMethod string             `json:"shipping_method,omitempty"`
	TrackingHandle string             `json:"tracking_handle,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// publishOrderEvent is fire-and-forget: the order is already stored, so a
// broker failure is logged and otherwise ignored.
func publishOrderEvent(pub EventPublisher, routingKey string, order *models.Order) {
	if pub == nil {
		return
	}
	body, err := json.Marshal(OrderEvent{
		OrderID:        order.ID,
		OwnerID:        order.OwnerID,
		Status:         order.Status,
		Amount:         order.Amount.String(),
		ShippingMethod: string(order.ShippingMethod),
		TrackingHandle: order.TrackingHandle,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", routingKey, order.ID, err)
		return
	}
	if err := pub.Publish(routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", routingKey, order.ID, err)
	}
}
