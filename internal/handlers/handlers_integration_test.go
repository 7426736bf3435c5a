package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dryfruits/internal/app"
	"dryfruits/internal/config"
	"dryfruits/internal/middleware"
	"dryfruits/internal/repositories"
	"dryfruits/pkg/blobstore"
	"dryfruits/pkg/metrics"
	"dryfruits/pkg/nimbuspost"
	"dryfruits/pkg/razorpay"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "rzp_test_secret"
	adminPhone    = "9000000001"
	adminPassword = "admin-pass"
)

// stubGateway hands out sequential gateway order ids.
type stubGateway struct {
	mu sync.Mutex
	n  int
}

func (g *stubGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return razorpay.Order{ID: fmt.Sprintf("order_%d", g.n), AmountMinorUnits: amountMinor, Currency: currency}, nil
}

// stubCarrier books every shipment unless err is set.
type stubCarrier struct {
	calls atomic.Int32
	err   error
}

func (c *stubCarrier) CreateShipment(ctx context.Context, s nimbuspost.Shipment) (nimbuspost.Booking, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nimbuspost.Booking{}, c.err
	}
	return nimbuspost.Booking{AWBNumber: "AWB-" + s.OrderRef[:8], ShipmentID: "SH-1"}, nil
}

// setupApp sets up the storefront over an in-memory SQLite database.
func setupApp(t *testing.T, carrier *stubCarrier) *fiber.App {
	t.Helper()
	db, err := repositories.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	uploads := t.TempDir()
	cfg := &config.Config{
		JWTSecret:           "test_jwt_secret",
		RazorpayKeyID:       "rzp_test_key",
		RazorpayKeySecret:   testSecret,
		Currency:            "INR",
		MinorUnitFactor:     100,
		CarrierTimeout:      time.Second,
		DefaultParcelWeight: 500,
		BlobBackend:         "local",
		BlobLocalDir:        uploads,
		BlobPublicURL:       "/uploads",
		AdminPhone:          adminPhone,
		AdminPassword:       adminPassword,
	}
	storefront, err := app.New(cfg, app.Deps{
		DB:      db,
		Gateway: &stubGateway{},
		Carrier: carrier,
		Blobs:   blobstore.NewLocalStore(uploads, "/uploads"),
		Metrics: metrics.New("test"),
	})
	require.NoError(t, err)
	return storefront.Fiber
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// call sends a JSON request and returns the status and raw body.
func call(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func login(t *testing.T, app *fiber.App, phone, password string) map[string]string {
	t.Helper()
	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{"phone": phone, "password": password}, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	token, _ := decode(t, raw)["token"].(string)
	require.NotEmpty(t, token)
	return map[string]string{"Authorization": "Bearer " + token}
}

func guest() map[string]string {
	return map[string]string{middleware.GuestHeader: uuid.NewString()}
}

// productBody is a complete create request; is_available is left to its
// default.
func productBody(name string, price float64) map[string]any {
	return map[string]any{
		"name":           name,
		"type":           "Nuts",
		"brand":          "Orchard",
		"sku":            "SKU-" + name,
		"price":          price,
		"weight":         250,
		"stock":          20,
		"packaging_type": "Pouch",
		"shelf_life":     "6 months",
		"description":    name + " from the orchard",
		"images":         []string{"/uploads/products/" + name + "-1.jpg", "/uploads/products/" + name + "-2.jpg"},
	}
}

func createProduct(t *testing.T, app *fiber.App, admin map[string]string, name string, price float64) string {
	t.Helper()
	status, raw := call(t, app, http.MethodPost, "/api/v1/products", productBody(name, price), admin)
	require.Equal(t, http.StatusCreated, status, string(raw))
	id, _ := decode(t, raw)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func address() map[string]string {
	return map[string]string{
		"full_name": "Asha Rao",
		"phone":     "9876543210",
		"street":    "12 MG Road",
		"city":      "Pune",
		"state":     "MH",
		"pincode":   "411001",
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app := setupApp(t, &stubCarrier{})

	userToRegister := map[string]string{
		"name":     "Test User",
		"phone":    "9876543210",
		"email":    "test@example.com",
		"password": "password123",
	}
	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/register", userToRegister, nil)
	assert.Equal(t, http.StatusCreated, status)
	registerResp := decode(t, raw)
	assert.Equal(t, "User registered successfully", registerResp["message"])
	assert.NotContains(t, registerResp["user"], "password")

	// duplicate phone
	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/register", userToRegister, nil)
	assert.Equal(t, http.StatusConflict, status)

	// validation
	status, raw = call(t, app, http.MethodPost, "/api/v1/auth/register", map[string]string{"name": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decode(t, raw)["errors"], "Phone")

	headers := login(t, app, "9876543210", "password123")
	assert.NotEmpty(t, headers["Authorization"])

	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{"phone": "9876543210", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProductEndpoints(t *testing.T) {
	app := setupApp(t, &stubCarrier{})
	admin := login(t, app, adminPhone, adminPassword)

	id := createProduct(t, app, admin, "Almonds", 240.5)

	// reads are public
	status, raw := call(t, app, http.MethodGet, "/api/v1/products/"+id, nil, nil)
	require.Equal(t, http.StatusOK, status)
	product := decode(t, raw)
	assert.Equal(t, "almonds", product["slug"])
	assert.Equal(t, true, product["is_available"])

	status, _ = call(t, app, http.MethodGet, "/api/v1/products/slug/almonds", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw = call(t, app, http.MethodGet, "/api/v1/products", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(raw, &products))
	assert.Len(t, products, 1)

	// writes need an admin
	newProduct := map[string]any{"name": "Cashews", "sku": "C1", "price": 10, "images": []string{"a.jpg"}}
	status, _ = call(t, app, http.MethodPost, "/api/v1/products", newProduct, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, app, http.MethodPost, "/api/v1/products", newProduct, guest())
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/register", map[string]string{"name": "C", "phone": "9111111111", "password": "password123"}, nil)
	require.Equal(t, http.StatusCreated, status)
	customer := login(t, app, "9111111111", "password123")
	status, _ = call(t, app, http.MethodPost, "/api/v1/products", newProduct, customer)
	assert.Equal(t, http.StatusForbidden, status)

	// invalid discount
	update := productBody("Almonds", 240.5)
	update["discount_percentage"] = 120
	status, _ = call(t, app, http.MethodPut, "/api/v1/products/"+id, update, admin)
	assert.Equal(t, http.StatusBadRequest, status)

	// required catalog fields
	incomplete := productBody("Dates", 99)
	delete(incomplete, "shelf_life")
	status, _ = call(t, app, http.MethodPost, "/api/v1/products", incomplete, admin)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodDelete, "/api/v1/products/"+id, nil, admin)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, app, http.MethodGet, "/api/v1/products/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLatestProducts(t *testing.T) {
	app := setupApp(t, &stubCarrier{})
	admin := login(t, app, adminPhone, adminPassword)

	for i := 0; i < 10; i++ {
		createProduct(t, app, admin, fmt.Sprintf("Nut%d", i), 100)
	}
	hidden := productBody("Hidden", 100)
	hidden["status"] = "Inactive"
	status, _ := call(t, app, http.MethodPost, "/api/v1/products", hidden, admin)
	require.Equal(t, http.StatusCreated, status)

	status, raw := call(t, app, http.MethodGet, "/api/v1/products/latest", nil, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var latest []map[string]any
	require.NoError(t, json.Unmarshal(raw, &latest))
	require.Len(t, latest, 8)
	for _, p := range latest {
		assert.NotEqual(t, "Hidden", p["name"])
		images, _ := p["images"].([]any)
		assert.Len(t, images, 1)
	}

	status, raw = call(t, app, http.MethodGet, "/api/v1/products/latest?limit=3", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &latest))
	assert.Len(t, latest, 3)
}

func TestCartSurvivesDeletedProduct(t *testing.T) {
	app := setupApp(t, &stubCarrier{})
	admin := login(t, app, adminPhone, adminPassword)
	shopper := guest()
	gone := createProduct(t, app, admin, "Figs", 150)
	kept := createProduct(t, app, admin, "Dates", 90)

	status, _ := call(t, app, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": gone, "quantity": 1}, shopper)
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, app, http.MethodDelete, "/api/v1/products/"+gone, nil, admin)
	require.Equal(t, http.StatusNoContent, status)

	status, raw := call(t, app, http.MethodGet, "/api/v1/cart", nil, shopper)
	require.Equal(t, http.StatusOK, status, string(raw))
	cart := decode(t, raw)
	assert.Len(t, cart["lines"], 0)
	assert.Len(t, cart["unavailable"], 1)

	status, raw = call(t, app, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": kept, "quantity": 1}, shopper)
	require.Equal(t, http.StatusOK, status, string(raw))
	cart = decode(t, raw)
	assert.Equal(t, "90", cart["subtotal"])

	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": address()}, shopper)
	assert.Equal(t, http.StatusBadRequest, status, string(raw))

	status, _ = call(t, app, http.MethodDelete, "/api/v1/cart/items/"+gone, nil, shopper)
	require.Equal(t, http.StatusOK, status)
	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": address()}, shopper)
	assert.Equal(t, http.StatusCreated, status, string(raw))
}

func TestCategoryEndpoints(t *testing.T) {
	app := setupApp(t, &stubCarrier{})
	admin := login(t, app, adminPhone, adminPassword)

	for _, name := range []string{"Nuts", "Nuts & Seeds", "Dates"} {
		status, raw := call(t, app, http.MethodPost, "/api/v1/categories", map[string]string{"name": name}, admin)
		require.Equal(t, http.StatusCreated, status, string(raw))
	}
	status, _ := call(t, app, http.MethodPost, "/api/v1/categories", map[string]string{"name": "Figs", "status": "Hidden"}, admin)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw := call(t, app, http.MethodGet, "/api/v1/categories?page=1&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, status)
	page := decode(t, raw)
	assert.Equal(t, float64(3), page["total"])
	assert.Equal(t, float64(2), page["total_pages"])
	assert.Len(t, page["items"], 2)
}

func TestGuestCheckoutAndFulfillment(t *testing.T) {
	carrier := &stubCarrier{}
	app := setupApp(t, carrier)
	admin := login(t, app, adminPhone, adminPassword)
	almonds := createProduct(t, app, admin, "Almonds", 120.5)
	cashews := createProduct(t, app, admin, "Cashews", 99)
	shopper := guest()

	// checkout needs a shopper identity
	status, _ := call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": address()}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// empty cart
	status, _ = call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": address()}, shopper)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": almonds, "quantity": 2}, shopper)
	require.Equal(t, http.StatusOK, status)
	status, raw := call(t, app, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": cashews}, shopper)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "340", decode(t, raw)["subtotal"])

	// incomplete address
	bad := address()
	bad["pincode"] = ""
	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": bad}, shopper)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decode(t, raw)["errors"], "Pincode")

	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": address()}, shopper)
	require.Equal(t, http.StatusCreated, status, string(raw))
	session := decode(t, raw)
	intentID := session["intent_id"].(string)
	assert.Equal(t, float64(34000), session["amount_minor_units"])
	assert.Equal(t, "rzp_test_key", session["key_id"])

	confirm := map[string]string{
		"gateway_order_id":   intentID,
		"gateway_payment_id": "pay_1",
		"signature":          razorpay.Sign(testSecret, intentID, "pay_1"),
	}
	forged := map[string]string{
		"gateway_order_id":   intentID,
		"gateway_payment_id": "pay_1",
		"signature":          razorpay.Sign("wrong", intentID, "pay_1"),
	}
	status, _ = call(t, app, http.MethodPost, "/api/v1/checkout/confirm", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/confirm", confirm, nil)
	require.Equal(t, http.StatusCreated, status, string(raw))
	order := decode(t, raw)["order"].(map[string]any)
	orderID := order["id"].(string)
	assert.Equal(t, "Paid", order["status"])
	assert.Equal(t, "340", order["amount"])

	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/confirm", confirm, nil)
	require.Equal(t, http.StatusOK, status)
	again := decode(t, raw)
	assert.Equal(t, true, again["duplicate"])
	assert.Equal(t, orderID, again["order"].(map[string]any)["id"])

	// the cart was emptied
	status, raw = call(t, app, http.MethodGet, "/api/v1/cart", nil, shopper)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode(t, raw)["lines"])

	// the guest sees the order, another guest does not
	status, raw = call(t, app, http.MethodGet, "/api/v1/orders", nil, shopper)
	require.Equal(t, http.StatusOK, status)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(raw, &mine))
	require.Len(t, mine, 1)
	status, _ = call(t, app, http.MethodGet, "/api/v1/orders/"+orderID, nil, guest())
	assert.Equal(t, http.StatusNotFound, status)

	// fulfillment is admin only and books the carrier once
	status, _ = call(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/fulfillment", map[string]string{"method": "Carrier"}, shopper)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/fulfillment", map[string]string{"method": "Drone"}, admin)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = call(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/fulfillment", map[string]string{"method": "Carrier"}, admin)
	require.Equal(t, http.StatusOK, status, string(raw))
	shipped := decode(t, raw)
	assert.Equal(t, "Shipped", shipped["status"])
	assert.Equal(t, "Carrier", shipped["shipping_method"])
	assert.NotEmpty(t, shipped["tracking_handle"])

	status, raw = call(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/fulfillment", map[string]string{"method": "Carrier"}, admin)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, shipped["tracking_handle"], decode(t, raw)["tracking_handle"])
	assert.Equal(t, int32(1), carrier.calls.Load())

	// Shipped is terminal
	status, _ = call(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", map[string]string{"status": "Cancelled"}, admin)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = call(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/fulfillment", map[string]string{"method": "Self"}, admin)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCarrierFailureIsUnavailable(t *testing.T) {
	app := setupApp(t, &stubCarrier{err: &nimbuspost.APIError{StatusCode: 500, Message: "down"}})
	admin := login(t, app, adminPhone, adminPassword)
	product := createProduct(t, app, admin, "Raisins", 50)

	status, _ := call(t, app, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": product, "quantity": 1}, admin)
	require.Equal(t, http.StatusOK, status)
	status, raw := call(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]any{"shipping_address": address()}, admin)
	require.Equal(t, http.StatusCreated, status, string(raw))
	intentID := decode(t, raw)["intent_id"].(string)
	status, raw = call(t, app, http.MethodPost, "/api/v1/checkout/confirm", map[string]string{
		"gateway_order_id":   intentID,
		"gateway_payment_id": "pay_9",
		"signature":          razorpay.Sign(testSecret, intentID, "pay_9"),
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	orderID := decode(t, raw)["order"].(map[string]any)["id"].(string)

	status, _ = call(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/fulfillment", map[string]string{"method": "Carrier"}, admin)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, raw = call(t, app, http.MethodGet, "/api/v1/orders/"+orderID, nil, admin)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Paid", decode(t, raw)["status"])

	status, raw = call(t, app, http.MethodGet, "/api/v1/orders?status=Paid", nil, admin)
	require.Equal(t, http.StatusOK, status)
	var paid []map[string]any
	require.NoError(t, json.Unmarshal(raw, &paid))
	assert.Len(t, paid, 1)
}

func TestGuestHeaderMustBeUUID(t *testing.T) {
	app := setupApp(t, &stubCarrier{})

	status, _ := call(t, app, http.MethodGet, "/api/v1/cart", nil, map[string]string{middleware.GuestHeader: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/cart", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

const pngFile = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"

func TestUploadAndServe(t *testing.T) {
	app := setupApp(t, &stubCarrier{})
	admin := login(t, app, adminPhone, adminPassword)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="almonds.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(pngFile))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", admin["Authorization"])
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded struct {
		URLs []string `json:"urls"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.Len(t, uploaded.URLs, 1)

	status, raw := call(t, app, http.MethodGet, uploaded.URLs[0], nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, pngFile, string(raw))
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupApp(t, &stubCarrier{})

	status, raw := call(t, app, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", decode(t, raw)["status"])

	status, raw = call(t, app, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "test_http_requests_total")
}
