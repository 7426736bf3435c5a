package services

import (
	"dryfruits/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice is the payable unit price: the stored final price when one
// is set, otherwise the list price.
func EffectivePrice(p *models.Product) decimal.Decimal {
	if p.FinalPrice.Valid {
		return p.FinalPrice.Decimal
	}
	return p.Price
}

// DeriveFinalPrice computes price × (1 − discount/100) to two places.
func DeriveFinalPrice(price, discountPercentage decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(discountPercentage).Div(hundred)
	return price.Mul(factor).Round(2)
}

// PricedLine is a cart line joined with the product as it is stored now.
type PricedLine struct {
	Product   models.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// PricedCart is a cart evaluated against current catalog prices.
// Unavailable lists cart lines whose product no longer exists; they are
// not part of Lines or Subtotal.
type PricedCart struct {
	OwnerID     string            `json:"owner_id"`
	Lines       []PricedLine      `json:"lines"`
	Unavailable []UnavailableLine `json:"unavailable"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
}

// UnavailableLine is a cart line pointing at a deleted product.
type UnavailableLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PriceLine evaluates one line.
func PriceLine(p *models.Product, quantity int) PricedLine {
	unit := EffectivePrice(p)
	return PricedLine{
		Product:   *p,
		Quantity:  quantity,
		UnitPrice: unit,
		LineTotal: unit.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Subtotal sums the line totals.
func Subtotal(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// Snapshot freezes the priced lines for an order.
func (c *PricedCart) Snapshot() []models.LineSnapshot {
	out := make([]models.LineSnapshot, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, models.LineSnapshot{
			ProductID:   l.Product.ID,
			Name:        l.Product.Name,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			WeightGrams: l.Product.Weight,
		})
	}
	return out
}
