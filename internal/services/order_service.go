package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
	"dryfruits/pkg/metrics"

	"github.com/shopspring/decimal"
)

// Confirmation is the completion callback the gateway delivers after the
// shopper paid.
type Confirmation struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// OrderService materialises orders from verified payments and guards their
// status transitions.
type OrderService struct {
	orders    repositories.OrderRepository
	intents   repositories.IntentRepository
	payments  *PaymentService
	publisher EventPublisher
	metrics   *metrics.Metrics
}

// NewOrderService creates a new OrderService. publisher and m may be nil.
func NewOrderService(orders repositories.OrderRepository, intents repositories.IntentRepository, payments *PaymentService, publisher EventPublisher, m *metrics.Metrics) *OrderService {
	return &OrderService{
		orders:    orders,
		intents:   intents,
		payments:  payments,
		publisher: publisher,
		metrics:   m,
	}
}

// ListOrders returns the orders matching filter, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidf("unknown order status %q", filter.Status)
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "failed to list orders")
	}
	return orders, nil
}

// GetOrderByID retrieves a single order.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "failed to get order")
	}
	return order, nil
}

// ConfirmPayment turns a verified completion callback into a Paid order.
// Delivering the same confirmation again returns the first order with
// duplicate set. A signature mismatch writes nothing.
func (s *OrderService) ConfirmPayment(ctx context.Context, c Confirmation) (order *models.Order, duplicate bool, err error) {
	if c.GatewayOrderID == "" || c.GatewayPaymentID == "" || c.Signature == "" {
		return nil, false, invalidf("gateway order id, payment id and signature are required")
	}

	if !s.payments.VerifyCompletion(c.GatewayOrderID, c.GatewayPaymentID, c.Signature) {
		log.Printf("SECURITY: payment signature mismatch for gateway order %s payment %s", c.GatewayOrderID, c.GatewayPaymentID)
		s.metrics.VerificationFailed()
		return nil, false, ErrPaymentVerificationFailed
	}

	if existing, err := s.orders.GetByPaymentRef(ctx, c.GatewayOrderID, c.GatewayPaymentID); err == nil {
		s.metrics.DuplicateConfirmation()
		return existing, true, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, storeErr(err, "failed to look up payment %s", c.GatewayPaymentID)
	}

	intent, err := s.intents.GetByID(ctx, c.GatewayOrderID)
	if err != nil {
		return nil, false, storeErr(err, "failed to load checkout for gateway order %s", c.GatewayOrderID)
	}
	if err := s.checkIntent(intent); err != nil {
		return nil, false, err
	}

	order = orderFromIntent(intent, c)
	err = s.orders.Create(ctx, order)
	if errors.Is(err, repositories.ErrDuplicate) {
		// Either a concurrent delivery of the same callback won the race, or
		// another payment already settled this gateway order.
		existing, getErr := s.orders.GetByPaymentRef(ctx, c.GatewayOrderID, c.GatewayPaymentID)
		if errors.Is(getErr, repositories.ErrNotFound) {
			log.Printf("Warning: gateway order %s already settled, payment %s not applied", c.GatewayOrderID, c.GatewayPaymentID)
			return nil, false, fmt.Errorf("gateway order %s already settled by another payment: %w", c.GatewayOrderID, ErrAlreadyExists)
		}
		if getErr != nil {
			return nil, false, storeErr(getErr, "failed to load order for payment %s", c.GatewayPaymentID)
		}
		s.metrics.DuplicateConfirmation()
		return existing, true, nil
	}
	if err != nil {
		return nil, false, storeErr(err, "failed to create order")
	}

	log.Printf("Order %s created for %s (payment %s, amount %s)", order.ID, order.OwnerID, c.GatewayPaymentID, order.Amount)
	s.metrics.OrderCreated()
	publishOrderEvent(s.publisher, EventOrderPaid, order)
	return order, false, nil
}

// checkIntent enforces the creation guards on the stored checkout snapshot.
func (s *OrderService) checkIntent(intent *models.CheckoutIntent) error {
	if len(intent.Items) == 0 {
		return invalidf("checkout %s has no items", intent.ID)
	}
	if !intent.Amount.IsPositive() {
		return invalidf("checkout %s has a non-positive amount", intent.ID)
	}
	if !intent.ShippingAddress.Complete() {
		return invalidf("checkout %s has an incomplete shipping address", intent.ID)
	}

	sum := decimal.Zero
	for _, it := range intent.Items {
		if it.Quantity < 1 {
			return invalidf("checkout %s has a line with quantity %d", intent.ID, it.Quantity)
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !sum.Equal(intent.Amount) {
		return invalidf("checkout %s lines sum to %s, intent amount is %s", intent.ID, sum, intent.Amount)
	}
	minor, err := s.payments.ToMinorUnits(intent.Amount)
	if err != nil {
		return err
	}
	if minor != intent.AmountMinorUnits {
		return invalidf("checkout %s amount %s does not match the %d minor units paid", intent.ID, intent.Amount, intent.AmountMinorUnits)
	}
	return nil
}

func orderFromIntent(intent *models.CheckoutIntent, c Confirmation) *models.Order {
	items := make([]models.OrderItem, 0, len(intent.Items))
	for _, it := range intent.Items {
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			WeightGrams: it.WeightGrams,
		})
	}
	return &models.Order{
		OwnerID:         intent.OwnerID,
		Items:           items,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          models.OrderPaid,
		ShippingAddress: intent.ShippingAddress,
		PaymentRef: models.PaymentRef{
			GatewayOrderID:   c.GatewayOrderID,
			GatewayPaymentID: c.GatewayPaymentID,
			Signature:        c.Signature,
		},
		ShippingMethod: models.ShippingNone,
	}
}

// UpdateOrderStatus moves an order to status through the transition guard.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, invalidf("invalid order status: %s", status)
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "failed to get order")
	}
	if !models.CanTransition(order.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	err = s.orders.UpdateStatus(ctx, id, order.Status, status)
	if errors.Is(err, repositories.ErrStateConflict) {
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, id)
	}
	if err != nil {
		return nil, storeErr(err, "failed to update order status for order %s", id)
	}

	order.Status = status
	publishOrderEvent(s.publisher, EventOrderStatusChanged, order)
	return order, nil
}
