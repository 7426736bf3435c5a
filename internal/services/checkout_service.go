package services

import (
	"context"
	"log"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
)

// CheckoutSession is what the storefront needs to open the gateway's
// payment page.
type CheckoutSession struct {
	Intent
	Amount string `json:"amount"`
	KeyID  string `json:"key_id,omitempty"`
}

// CheckoutService drives a cart through payment into an order.
type CheckoutService struct {
	carts    *CartService
	payments *PaymentService
	orders   *OrderService
	intents  repositories.IntentRepository
	keyID    string
}

// NewCheckoutService creates a new CheckoutService. keyID is the public
// gateway key handed to the browser.
func NewCheckoutService(carts *CartService, payments *PaymentService, orders *OrderService, intents repositories.IntentRepository, keyID string) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		payments: payments,
		orders:   orders,
		intents:  intents,
		keyID:    keyID,
	}
}

// BeginCheckout prices the shopper's cart, creates a gateway intent for the
// subtotal and records what it was created for.
func (s *CheckoutService) BeginCheckout(ctx context.Context, ownerID string, address models.ShippingAddress) (*CheckoutSession, error) {
	if err := validateStruct(address); err != nil {
		return nil, err
	}
	if !address.Complete() {
		return nil, invalidf("shipping address is incomplete")
	}

	priced, err := s.carts.PriceCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(priced.Unavailable) > 0 {
		return nil, invalidf("product %s is no longer sold, remove it from the cart", priced.Unavailable[0].ProductID)
	}
	if len(priced.Lines) == 0 {
		return nil, invalidf("cart is empty")
	}
	for _, line := range priced.Lines {
		if !line.Product.Purchasable() {
			return nil, invalidf("product %s is not available", line.Product.Name)
		}
		if line.Product.Stock < line.Quantity {
			return nil, invalidf("only %d of %s in stock", line.Product.Stock, line.Product.Name)
		}
	}

	intent, err := s.payments.CreateIntent(ctx, priced.Subtotal)
	if err != nil {
		return nil, err
	}

	record := &models.CheckoutIntent{
		ID:               intent.IntentID,
		OwnerID:          ownerID,
		Amount:           priced.Subtotal,
		AmountMinorUnits: intent.AmountMinorUnits,
		Currency:         intent.Currency,
		Items:            priced.Snapshot(),
		ShippingAddress:  address,
	}
	if err := s.intents.Create(ctx, record); err != nil {
		return nil, storeErr(err, "failed to record checkout %s", intent.IntentID)
	}

	log.Printf("Checkout %s opened for %s: %s %s", intent.IntentID, ownerID, priced.Subtotal, intent.Currency)
	return &CheckoutSession{Intent: intent, Amount: priced.Subtotal.StringFixed(2), KeyID: s.keyID}, nil
}

// Complete confirms the payment and empties the shopper's cart. The order
// stands even if the cart cannot be cleared.
func (s *CheckoutService) Complete(ctx context.Context, c Confirmation) (*models.Order, bool, error) {
	if err := validateStruct(c); err != nil {
		return nil, false, err
	}
	order, duplicate, err := s.orders.ConfirmPayment(ctx, c)
	if err != nil {
		return nil, false, err
	}
	if !duplicate {
		if err := s.carts.Clear(ctx, order.OwnerID); err != nil {
			log.Printf("Warning: order %s created but cart of %s not cleared: %v", order.ID, order.OwnerID, err)
		}
	}
	return order, duplicate, nil
}
