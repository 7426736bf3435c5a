package services

import (
	"context"
	"fmt"
	"strings"

	"dryfruits/pkg/razorpay"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGateway creates payable orders at the payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (razorpay.Order, error)
}

// Intent is a gateway-side order awaiting payment.
type Intent struct {
	IntentID         string `json:"intent_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

// PaymentService creates payment intents and authenticates completion
// callbacks.
type PaymentService struct {
	gateway  PaymentGateway
	secret   string
	currency string
	factor   decimal.Decimal
}

// NewPaymentService creates a PaymentService. minorUnitFactor converts major
// to minor currency units (100 for INR).
func NewPaymentService(gateway PaymentGateway, secret, currency string, minorUnitFactor int64) *PaymentService {
	return &PaymentService{
		gateway:  gateway,
		secret:   secret,
		currency: currency,
		factor:   decimal.NewFromInt(minorUnitFactor),
	}
}

// Currency is the currency every intent is created in.
func (s *PaymentService) Currency() string {
	return s.currency
}

// ToMinorUnits converts a major-unit amount. The result must be a positive
// whole number of minor units.
func (s *PaymentService) ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount)
	}
	minor := amount.Mul(s.factor)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s × %s = %s", ErrPrecision, amount, s.factor, minor)
	}
	if !minor.IsPositive() || minor.GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, fmt.Errorf("%w: %s out of range", ErrPrecision, minor)
	}
	return minor.IntPart(), nil
}

// CreateIntent asks the gateway for an order of amount (major units).
func (s *PaymentService) CreateIntent(ctx context.Context, amount decimal.Decimal) (Intent, error) {
	minor, err := s.ToMinorUnits(amount)
	if err != nil {
		return Intent{}, err
	}

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	order, err := s.gateway.CreateOrder(ctx, minor, s.currency, receipt)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if order.AmountMinorUnits != 0 && order.AmountMinorUnits != minor {
		return Intent{}, fmt.Errorf("%w: gateway order %s is for %d, requested %d", ErrPaymentGateway, order.ID, order.AmountMinorUnits, minor)
	}
	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}
	return Intent{IntentID: order.ID, AmountMinorUnits: minor, Currency: currency}, nil
}

// VerifyCompletion checks the callback signature in constant time.
func (s *PaymentService) VerifyCompletion(intentID, paymentID, signature string) bool {
	if intentID == "" || paymentID == "" || signature == "" {
		return false
	}
	return razorpay.VerifySignature(s.secret, intentID, paymentID, signature)
}
