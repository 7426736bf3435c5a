package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
	"dryfruits/internal/services"
	"dryfruits/pkg/metrics"
	"dryfruits/pkg/nimbuspost"
	"dryfruits/pkg/razorpay"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "rzp_test_secret"

// mockGateway is a mock implementation of services.PaymentGateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (razorpay.Order, error) {
	args := m.Called(amountMinor, currency)
	return args.Get(0).(razorpay.Order), args.Error(1)
}

// expectIntent makes the next CreateOrder for minor units answer with id.
func (m *mockGateway) expectIntent(id string, minor int64) *mock.Call {
	return m.On("CreateOrder", minor, "INR").
		Return(razorpay.Order{ID: id, AmountMinorUnits: minor, Currency: "INR"}, nil).Once()
}

// mockCarrier is a mock implementation of services.Carrier.
type mockCarrier struct {
	mock.Mock
}

func (m *mockCarrier) CreateShipment(ctx context.Context, s nimbuspost.Shipment) (nimbuspost.Booking, error) {
	args := m.Called(s)
	return args.Get(0).(nimbuspost.Booking), args.Error(1)
}

// recordingPublisher keeps the routing keys it was asked to publish.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repositories.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// shop wires the checkout pipeline over an in-memory database.
type shop struct {
	db        *gorm.DB
	products  repositories.ProductRepository
	orders    repositories.OrderRepository
	gateway   *mockGateway
	carrier   *mockCarrier
	publisher *recordingPublisher
	metrics   *metrics.Metrics

	carts       *services.CartService
	payments    *services.PaymentService
	orderSvc    *services.OrderService
	checkout    *services.CheckoutService
	fulfillment *services.FulfillmentService
}

func newShop(t *testing.T) *shop {
	t.Helper()
	db := openTestDB(t)
	s := &shop{
		db:        db,
		products:  repositories.NewGORMProductRepository(db),
		orders:    repositories.NewGORMOrderRepository(db),
		gateway:   new(mockGateway),
		carrier:   new(mockCarrier),
		publisher: &recordingPublisher{},
		metrics:   metrics.New("test"),
	}
	intents := repositories.NewGORMIntentRepository(db)
	s.carts = services.NewCartService(repositories.NewGORMCartRepository(db), s.products)
	s.payments = services.NewPaymentService(s.gateway, testSecret, "INR", 100)
	s.orderSvc = services.NewOrderService(s.orders, intents, s.payments, s.publisher, s.metrics)
	s.checkout = services.NewCheckoutService(s.carts, s.payments, s.orderSvc, intents, "rzp_test_key")
	s.fulfillment = services.NewFulfillmentService(s.orders, s.carrier, s.publisher, s.metrics, services.FulfillmentConfig{})
	return s
}

func (s *shop) addProduct(t *testing.T, name, price string, mutate func(*models.Product)) *models.Product {
	t.Helper()
	slug := services.Slugify(name)
	p := &models.Product{
		Name:          name,
		Slug:          slug,
		SKU:           "SKU-" + slug,
		Price:         decimal.RequireFromString(price),
		Type:          "Nuts",
		Brand:         "Orchard",
		Weight:        250,
		Stock:         50,
		IsAvailable:   boolPtr(true),
		PackagingType: "Pouch",
		ShelfLife:     "6 months",
		Description:   name + " from the orchard",
		Status:        models.StatusActive,
		Images:        []string{"/uploads/products/" + slug + ".jpg"},
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, s.products.Create(context.Background(), p))
	return p
}

func boolPtr(b bool) *bool {
	return &b
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{FullName: "Asha Rao", Phone: "9876543210", Street: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001"}
}

// confirmation builds a correctly signed completion callback.
func confirmation(intentID, paymentID string) services.Confirmation {
	return services.Confirmation{
		GatewayOrderID:   intentID,
		GatewayPaymentID: paymentID,
		Signature:        razorpay.Sign(testSecret, intentID, paymentID),
	}
}

// paidOrder stores a Paid order directly, bypassing checkout.
func (s *shop) paidOrder(t *testing.T) *models.Order {
	t.Helper()
	ref := uuid.NewString()
	order := &models.Order{
		OwnerID:  "user-1",
		Amount:   decimal.RequireFromString("340.00"),
		Currency: "INR",
		Status:   models.OrderPaid,
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Almonds", UnitPrice: decimal.RequireFromString("120.50"), Quantity: 2, WeightGrams: 250},
			{ProductID: "p2", Name: "Cashews", UnitPrice: decimal.RequireFromString("99.00"), Quantity: 1, WeightGrams: 500},
		},
		ShippingAddress: testAddress(),
		PaymentRef:      models.PaymentRef{GatewayOrderID: "order_" + ref, GatewayPaymentID: "pay_" + ref, Signature: "sig"},
		ShippingMethod:  models.ShippingNone,
	}
	require.NoError(t, s.orders.Create(context.Background(), order))
	return order
}
