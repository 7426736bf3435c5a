package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderPaid      OrderStatus = "Paid"
	OrderShipped   OrderStatus = "Shipped"
	OrderCancelled OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderShipped, OrderCancelled},
}

// Valid reports whether s is one of the known states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ShippingAddress is the destination frozen onto an order.
type ShippingAddress struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
	Street   string `json:"street" validate:"required,max=300"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"required,max=100"`
	Pincode  string `json:"pincode" validate:"required,numeric,min=4,max=10"`
}

// Complete reports whether every address field carries a non-blank value.
func (a ShippingAddress) Complete() bool {
	for _, f := range []string{a.FullName, a.Phone, a.Street, a.City, a.State, a.Pincode} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// LineSnapshot is a cart line frozen at checkout time.
type LineSnapshot struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	WeightGrams int             `json:"weight_grams"`
}

// CheckoutIntent records what a gateway intent was created for: the owner,
// the amount and the priced lines. Orders are materialised from it.
type CheckoutIntent struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(64)"` // gateway order id
	OwnerID          string          `json:"owner_id" gorm:"index;type:varchar(64);not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	AmountMinorUnits int64           `json:"amount_minor_units" gorm:"not null"`
	Currency         string          `json:"currency" gorm:"type:varchar(8);not null"`
	Items            []LineSnapshot  `json:"items" gorm:"serializer:json"`
	ShippingAddress  ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:ship_"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PaymentRef correlates an order with the gateway payment that settled it.
// A gateway order settles at most one order.
type PaymentRef struct {
	GatewayOrderID   string `json:"gateway_order_id" gorm:"uniqueIndex:idx_orders_payment_ref;uniqueIndex:idx_orders_gateway_order;type:varchar(64);not null"`
	GatewayPaymentID string `json:"gateway_payment_id" gorm:"uniqueIndex:idx_orders_payment_ref;type:varchar(64);not null"`
	Signature        string `json:"signature" gorm:"type:varchar(128)"`
}

// OrderItem is the immutable per-line snapshot stored with an order.
type OrderItem struct {
	ID          uint            `json:"-" gorm:"primaryKey"`
	OrderID     string          `json:"-" gorm:"index;type:varchar(36);not null"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	WeightGrams int             `json:"weight_grams"`
}

// ShippingMethod is the persisted discriminator of a ShippingOutcome.
type ShippingMethod string

const (
	ShippingNone    ShippingMethod = "None"
	ShippingSelf    ShippingMethod = "Self"
	ShippingCarrier ShippingMethod = "Carrier"
)

// ShippingOutcome is either SelfShipping or CarrierShipping.
type ShippingOutcome interface {
	Method() ShippingMethod
}

// SelfShipping means the store delivers the parcel itself.
type SelfShipping struct{}

// Method implements ShippingOutcome.
func (SelfShipping) Method() ShippingMethod { return ShippingSelf }

// CarrierShipping is a shipment booked with the logistics provider.
type CarrierShipping struct {
	TrackingHandle string `json:"tracking_handle"`
	ShipmentID     string `json:"shipment_id"`
}

// Method implements ShippingOutcome.
func (CarrierShipping) Method() ShippingMethod { return ShippingCarrier }

// Order is the durable record of a paid transaction.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID         string          `json:"owner_id" gorm:"index;type:varchar(64);not null"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency        string          `json:"currency" gorm:"type:varchar(8);not null"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(16);index;not null"`
	ShippingAddress ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:ship_"`
	PaymentRef      PaymentRef      `json:"payment_ref" gorm:"embedded"`
	ShippingMethod  ShippingMethod  `json:"shipping_method" gorm:"type:varchar(16);not null"`
	TrackingHandle  string          `json:"tracking_handle,omitempty"`
	ShipmentID      string          `json:"shipment_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Shipping returns the recorded outcome, or nil while unassigned.
func (o *Order) Shipping() ShippingOutcome {
	switch o.ShippingMethod {
	case ShippingSelf:
		return SelfShipping{}
	case ShippingCarrier:
		return CarrierShipping{TrackingHandle: o.TrackingHandle, ShipmentID: o.ShipmentID}
	}
	return nil
}

// SetShipping stores outcome in the flat columns. A Self outcome always
// clears any carrier identifiers.
func (o *Order) SetShipping(outcome ShippingOutcome) {
	switch v := outcome.(type) {
	case SelfShipping:
		o.ShippingMethod = ShippingSelf
		o.TrackingHandle = ""
		o.ShipmentID = ""
	case CarrierShipping:
		o.ShippingMethod = ShippingCarrier
		o.TrackingHandle = v.TrackingHandle
		o.ShipmentID = v.ShipmentID
	default:
		o.ShippingMethod = ShippingNone
		o.TrackingHandle = ""
		o.ShipmentID = ""
	}
}

// TotalWeight sums the snapshot weights in grams.
func (o *Order) TotalWeight() int {
	total := 0
	for _, it := range o.Items {
		total += it.WeightGrams * it.Quantity
	}
	return total
}
