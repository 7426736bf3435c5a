package models

import "time"

// Cart is the set of lines a shopper intends to buy. Its total is never
// stored; see services.PriceCart.
type Cart struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string     `json:"owner_id" gorm:"uniqueIndex;type:varchar(64);not null"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one (product, quantity) line. The composite primary key keeps
// a single line per product per cart.
type CartItem struct {
	CartID    string `json:"-" gorm:"primaryKey;type:varchar(36)"`
	ProductID string `json:"product_id" gorm:"primaryKey;type:varchar(36)"`
	Quantity  int    `json:"quantity" gorm:"not null"`
}

// Line returns the index of the line for productID, or -1.
func (c *Cart) Line(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// IsPersisted reports whether the cart has been stored yet.
func (c *Cart) IsPersisted() bool {
	return c.ID != ""
}
