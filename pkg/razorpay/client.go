// Package razorpay wraps the Razorpay SDK for creating payable orders and
// checking the signature Razorpay attaches to a completed payment.
package razorpay

import (
	"context"
	"fmt"

	rzp "github.com/razorpay/razorpay-go"
)

// Order is the gateway-side record of an amount awaiting payment.
type Order struct {
	ID               string
	AmountMinorUnits int64
	Currency         string
}

// Client creates orders through the Razorpay Orders API.
type Client struct {
	api   *rzp.Client
	keyID string
}

// NewClient returns a client authenticated with the key pair.
func NewClient(keyID, keySecret string) *Client {
	return &Client{
		api:   rzp.NewClient(keyID, keySecret),
		keyID: keyID,
	}
}

// KeyID is the public key the browser checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder asks Razorpay for an auto-captured order of amountMinor units.
// The SDK has no context support, so ctx only bounds how long we wait.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (Order, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := c.api.Order.Create(map[string]interface{}{
			"amount":          amountMinor,
			"currency":        currency,
			"receipt":         receipt,
			"payment_capture": 1,
		}, nil)
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return Order{}, fmt.Errorf("razorpay order create: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return Order{}, fmt.Errorf("razorpay order create: %w", res.err)
		}
		return parseOrder(res.body)
	}
}

func parseOrder(body map[string]interface{}) (Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return Order{}, fmt.Errorf("razorpay order create: response without id")
	}
	order := Order{ID: id}
	order.Currency, _ = body["currency"].(string)
	switch amount := body["amount"].(type) {
	case float64:
		order.AmountMinorUnits = int64(amount)
	case int64:
		order.AmountMinorUnits = amount
	case int:
		order.AmountMinorUnits = int64(amount)
	}
	return order, nil
}
