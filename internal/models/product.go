package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog entity status values shared by products and categories.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Nutrition holds per-100g nutritional values.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Fiber    float64 `json:"fiber"`
}

// Product represents a product in the store.
type Product struct {
	ID                 string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string              `json:"name" gorm:"not null"`
	Slug               string              `json:"slug" gorm:"uniqueIndex;type:varchar(160);not null"`
	Category           string              `json:"category" gorm:"index"` // loose reference to Category.ID or name
	Type               string              `json:"type"`
	Brand              string              `json:"brand"`
	SKU                string              `json:"sku" gorm:"uniqueIndex;type:varchar(64);not null"`
	ProductCode        string              `json:"product_code,omitempty"`
	Price              decimal.Decimal     `json:"price" gorm:"type:numeric(12,2);not null"`
	DiscountPercentage decimal.Decimal     `json:"discount_percentage" gorm:"type:numeric(5,2);not null"`
	FinalPrice         decimal.NullDecimal `json:"final_price" gorm:"type:numeric(12,2)"` // stored independently of Price
	Weight             int                 `json:"weight"`                                // grams
	Stock              int                 `json:"stock" gorm:"not null"`
	IsAvailable        *bool               `json:"is_available" gorm:"not null;default:true"`
	Nutrition          Nutrition           `json:"nutrition" gorm:"embedded;embeddedPrefix:nutrition_"`
	PackagingType      string              `json:"packaging_type"`
	ShelfLife          string              `json:"shelf_life"`
	OriginCountry      string              `json:"origin_country"`
	QualityGrade       string              `json:"quality_grade"`
	Images             []string            `json:"images" gorm:"serializer:json"`
	Description        string              `json:"description"`
	Tags               []string            `json:"tags" gorm:"serializer:json"`
	Rating             float64             `json:"rating"`
	ReviewsCount       int                 `json:"reviews_count"`
	Status             string              `json:"status" gorm:"type:varchar(16);not null"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Available reports the availability flag; an unset flag is not available.
func (p *Product) Available() bool {
	return p.IsAvailable != nil && *p.IsAvailable
}

// Purchasable reports whether the product can currently be checked out.
func (p *Product) Purchasable() bool {
	return p.Available() && p.Status == StatusActive
}

// Category is a named product grouping.
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;type:varchar(120);not null"`
	Status    string    `json:"status" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
