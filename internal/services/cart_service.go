package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
)

// CartService maintains shopper carts.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// GetCart returns the shopper's cart, or an empty one that is not stored
// until its first mutation.
func (s *CartService) GetCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, invalidf("shopper id is required")
	}
	cart, err := s.carts.GetByOwner(ctx, ownerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.Cart{OwnerID: ownerID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, storeErr(err, "failed to load cart")
	}
	return cart, nil
}

// AddLine adds qty (at least 1) of productID, merging with an existing line.
func (s *CartService) AddLine(ctx context.Context, ownerID, productID string, qty int) (*models.Cart, error) {
	if productID == "" {
		return nil, invalidf("product id is required")
	}
	if qty < 1 {
		qty = 1
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, storeErr(err, "failed to add product %s to cart", productID)
	}

	add := func(cart *models.Cart) {
		if i := cart.Line(productID); i >= 0 {
			cart.Items[i].Quantity += qty
			return
		}
		cart.Items = append(cart.Items, models.CartItem{ProductID: productID, Quantity: qty})
	}
	return s.mutate(ctx, ownerID, add)
}

// SetLineQuantity replaces the quantity of an existing line; qty <= 0
// removes the line.
func (s *CartService) SetLineQuantity(ctx context.Context, ownerID, productID string, qty int) (*models.Cart, error) {
	cart, err := s.existingLine(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	i := cart.Line(productID)
	if qty <= 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	} else {
		cart.Items[i].Quantity = qty
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, storeErr(err, "failed to save cart")
	}
	return cart, nil
}

// RemoveLine drops the line for productID.
func (s *CartService) RemoveLine(ctx context.Context, ownerID, productID string) (*models.Cart, error) {
	return s.SetLineQuantity(ctx, ownerID, productID, 0)
}

// Clear empties the cart. A shopper without a cart is left untouched.
func (s *CartService) Clear(ctx context.Context, ownerID string) error {
	cart, err := s.GetCart(ctx, ownerID)
	if err != nil {
		return err
	}
	if !cart.IsPersisted() || len(cart.Items) == 0 {
		return nil
	}
	cart.Items = cart.Items[:0]
	if err := s.carts.Save(ctx, cart); err != nil {
		return storeErr(err, "failed to clear cart")
	}
	return nil
}

// PriceCart joins every line with the current product and sums the
// subtotal. Lines whose product has been deleted are reported as
// unavailable and left out of the subtotal.
func (s *CartService) PriceCart(ctx context.Context, ownerID string) (*PricedCart, error) {
	cart, err := s.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	priced := &PricedCart{
		OwnerID:     ownerID,
		Lines:       make([]PricedLine, 0, len(cart.Items)),
		Unavailable: []UnavailableLine{},
	}
	for _, item := range cart.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if errors.Is(err, repositories.ErrNotFound) {
			priced.Unavailable = append(priced.Unavailable, UnavailableLine{ProductID: item.ProductID, Quantity: item.Quantity})
			continue
		}
		if err != nil {
			return nil, storeErr(err, "failed to price cart line %s", item.ProductID)
		}
		priced.Lines = append(priced.Lines, PriceLine(product, item.Quantity))
	}
	priced.Subtotal = Subtotal(priced.Lines)
	return priced, nil
}

func (s *CartService) existingLine(ctx context.Context, ownerID, productID string) (*models.Cart, error) {
	if strings.TrimSpace(ownerID) == "" || productID == "" {
		return nil, invalidf("shopper id and product id are required")
	}
	cart, err := s.carts.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err, "failed to load cart")
	}
	if cart.Line(productID) < 0 {
		return nil, fmt.Errorf("product %s is not in the cart: %w", productID, ErrNotFound)
	}
	return cart, nil
}

// mutate applies fn to the shopper's cart and stores it. When two requests
// create the same cart concurrently the loser reloads and applies fn again.
func (s *CartService) mutate(ctx context.Context, ownerID string, fn func(*models.Cart)) (*models.Cart, error) {
	for attempt := 0; ; attempt++ {
		cart, err := s.GetCart(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		fn(cart)
		err = s.carts.Save(ctx, cart)
		if errors.Is(err, repositories.ErrDuplicate) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "failed to save cart")
		}
		return cart, nil
	}
}
