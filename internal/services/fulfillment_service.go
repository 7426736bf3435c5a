package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
	"dryfruits/pkg/metrics"
	"dryfruits/pkg/nimbuspost"
)

// Carrier books shipments with a logistics provider.
type Carrier interface {
	CreateShipment(ctx context.Context, s nimbuspost.Shipment) (nimbuspost.Booking, error)
}

// Parcel dimensions in centimetres; the store ships in one box size.
const (
	parcelLengthCM  = 10
	parcelBreadthCM = 10
	parcelHeightCM  = 10
)

// FulfillmentConfig tunes carrier bookings.
type FulfillmentConfig struct {
	Timeout            time.Duration
	DefaultWeightGrams int
}

// FulfillmentService ships paid orders, either by the store itself or
// through the carrier.
type FulfillmentService struct {
	orders    repositories.OrderRepository
	carrier   Carrier
	publisher EventPublisher
	metrics   *metrics.Metrics
	cfg       FulfillmentConfig
	locks     *keyedMutex
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(orders repositories.OrderRepository, carrier Carrier, publisher EventPublisher, m *metrics.Metrics, cfg FulfillmentConfig) *FulfillmentService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DefaultWeightGrams <= 0 {
		cfg.DefaultWeightGrams = 500
	}
	return &FulfillmentService{
		orders:    orders,
		carrier:   carrier,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		locks:     newKeyedMutex(),
	}
}

// Assign dispatches on the requested shipping method.
func (s *FulfillmentService) Assign(ctx context.Context, orderID string, method models.ShippingMethod) (*models.Order, error) {
	switch method {
	case models.ShippingSelf:
		return s.AssignSelf(ctx, orderID)
	case models.ShippingCarrier:
		return s.AssignCarrier(ctx, orderID)
	}
	return nil, invalidf("shipping method must be %s or %s", models.ShippingSelf, models.ShippingCarrier)
}

// AssignSelf marks a paid order as delivered by the store.
func (s *FulfillmentService) AssignSelf(ctx context.Context, orderID string) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.paidOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.markShipped(ctx, order, models.SelfShipping{}); err != nil {
		return nil, err
	}
	return order, nil
}

// AssignCarrier books the parcel with the carrier and marks the order
// shipped. An order that already has a tracking handle is returned as is,
// without booking again. A provider failure leaves the order Paid.
func (s *FulfillmentService) AssignCarrier(ctx context.Context, orderID string) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "failed to get order")
	}
	if order.TrackingHandle != "" {
		return order, nil
	}
	if order.Status != models.OrderPaid {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, order.ID, order.Status)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	booking, err := s.carrier.CreateShipment(callCtx, s.shipmentFor(order))
	if err == nil && booking.AWBNumber == "" {
		err = errors.New("booking has no tracking number")
	}
	if err != nil {
		log.Printf("Carrier booking failed for order %s: %v", order.ID, err)
		s.metrics.CarrierFailed()
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	outcome := models.CarrierShipping{TrackingHandle: booking.AWBNumber, ShipmentID: booking.ShipmentID}
	if err := s.markShipped(ctx, order, outcome); err != nil {
		log.Printf("ERROR: shipment %s (AWB %s) booked but order %s not updated: %v", booking.ShipmentID, booking.AWBNumber, order.ID, err)
		return nil, err
	}
	return order, nil
}

func (s *FulfillmentService) paidOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "failed to get order")
	}
	if order.Status != models.OrderPaid {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, order.ID, order.Status)
	}
	return order, nil
}

func (s *FulfillmentService) markShipped(ctx context.Context, order *models.Order, outcome models.ShippingOutcome) error {
	err := s.orders.MarkShipped(ctx, order.ID, outcome)
	if errors.Is(err, repositories.ErrStateConflict) {
		return fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, order.ID)
	}
	if err != nil {
		return storeErr(err, "failed to mark order %s shipped", order.ID)
	}

	order.Status = models.OrderShipped
	order.SetShipping(outcome)
	log.Printf("Order %s shipped (%s)", order.ID, order.ShippingMethod)
	s.metrics.Shipped(string(order.ShippingMethod))
	publishOrderEvent(s.publisher, EventOrderShipped, order)
	return nil
}

func (s *FulfillmentService) shipmentFor(order *models.Order) nimbuspost.Shipment {
	weight := order.TotalWeight()
	if weight <= 0 {
		weight = s.cfg.DefaultWeightGrams
	}
	addr := order.ShippingAddress
	return nimbuspost.Shipment{
		OrderRef:    order.ID,
		Amount:      order.Amount.StringFixed(2),
		WeightGrams: weight,
		LengthCM:    parcelLengthCM,
		BreadthCM:   parcelBreadthCM,
		HeightCM:    parcelHeightCM,
		Consignee: nimbuspost.Consignee{
			Name:    addr.FullName,
			Address: addr.Street,
			City:    addr.City,
			State:   addr.State,
			Pincode: addr.Pincode,
			Phone:   addr.Phone,
		},
	}
}

// keyedMutex serialises work per key. Entries are dropped once no one holds
// or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
