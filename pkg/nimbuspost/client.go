// Package nimbuspost is a small client for the NimbusPost shipping API:
// a credential login that yields a bearer token, and shipment booking.
package nimbuspost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
var ErrUnauthorized = errors.New("nimbuspost: unauthorized")

// APIError is a non-successful answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nimbuspost: status %d: %s", e.StatusCode, e.Message)
}

// Consignee is the receiving party of a shipment.
type Consignee struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// Shipment describes one prepaid parcel.
type Shipment struct {
	OrderRef    string
	Amount      string // major units, decimal string
	WeightGrams int
	LengthCM    int
	BreadthCM   int
	HeightCM    int
	Consignee   Consignee
}

// Booking is the provider's handle on a created shipment.
type Booking struct {
	AWBNumber  string
	ShipmentID string
}

// Config holds the API location and credentials.
type Config struct {
	BaseURL   string
	Email     string
	Password  string
	Warehouse string
	Timeout   time.Duration
}

// Client talks to NimbusPost. The bearer token is cached and refreshed
// once whenever a call comes back 401.
type Client struct {
	cfg  Config
	http *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type shipmentRequest struct {
	OrderNumber     string      `json:"order_number"`
	ShippingCharges int         `json:"shipping_charges"`
	Discount        int         `json:"discount"`
	CODCharges      int         `json:"cod_charges"`
	PaymentType     string      `json:"payment_type"`
	OrderAmount     json.Number `json:"order_amount"`
	PackageWeight   int         `json:"package_weight"`
	PackageLength   int         `json:"package_length"`
	PackageBreadth  int         `json:"package_breadth"`
	PackageHeight   int         `json:"package_height"`
	Consignee       Consignee   `json:"consignee"`
	Pickup          struct {
		WarehouseName string `json:"warehouse_name"`
	} `json:"pickup"`
}

// CreateShipment books s as a prepaid shipment.
func (c *Client) CreateShipment(ctx context.Context, s Shipment) (Booking, error) {
	req := shipmentRequest{
		OrderNumber:    s.OrderRef,
		PaymentType:    "prepaid",
		OrderAmount:    json.Number(s.Amount),
		PackageWeight:  s.WeightGrams,
		PackageLength:  s.LengthCM,
		PackageBreadth: s.BreadthCM,
		PackageHeight:  s.HeightCM,
		Consignee:      s.Consignee,
	}
	req.Pickup.WarehouseName = c.cfg.Warehouse

	token, err := c.bearer(ctx, false)
	if err != nil {
		return Booking{}, err
	}
	env, err := c.post(ctx, "/shipments", token, req)
	if errors.Is(err, ErrUnauthorized) {
		if token, err = c.bearer(ctx, true); err != nil {
			return Booking{}, err
		}
		env, err = c.post(ctx, "/shipments", token, req)
	}
	if err != nil {
		return Booking{}, err
	}

	var data struct {
		AWBNumber  flexString `json:"awb_number"`
		ShipmentID flexString `json:"shipment_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Booking{}, fmt.Errorf("nimbuspost: decode shipment: %w", err)
	}
	if data.AWBNumber == "" {
		return Booking{}, &APIError{StatusCode: http.StatusOK, Message: "shipment created without awb number"}
	}
	return Booking{AWBNumber: string(data.AWBNumber), ShipmentID: string(data.ShipmentID)}, nil
}

// bearer returns the cached token, logging in first when there is none or
// when refresh is set.
func (c *Client) bearer(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !refresh {
		return c.token, nil
	}

	env, err := c.post(ctx, "/users/login", "", map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("nimbuspost login: %w", err)
	}
	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil || token == "" {
		return "", fmt.Errorf("nimbuspost login: no token in response")
	}
	c.token = token
	return token, nil
}

func (c *Client) post(ctx context.Context, path, token string, payload any) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("nimbuspost: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("nimbuspost: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nimbuspost: %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("nimbuspost: read %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "malformed response"}
	}
	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

// flexString accepts a JSON string or number; the API is not consistent
// about which one it sends for identifiers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
