package repositories

import (
	"context"
	"time"

	"dryfruits/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository defines the interface for cart data access. A cart is
// stored and replaced as a whole, like a document.
type CartRepository interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// GetByOwner loads the cart of ownerID with its lines.
func (r *GORMCartRepository) GetByOwner(ctx context.Context, ownerID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Preload("Items").First(&cart, "owner_id = ?", ownerID).Error
	if err != nil {
		return nil, translate(err, "cart of %s", ownerID)
	}
	return &cart, nil
}

// Save inserts the cart on first use and replaces its lines atomically.
func (r *GORMCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cart.ID == "" {
			cart.ID = uuid.New().String()
			if err := tx.Omit(clause.Associations).Create(cart).Error; err != nil {
				cart.ID = ""
				return translate(err, "failed to create cart for %s", cart.OwnerID)
			}
		} else {
			cart.UpdatedAt = time.Now()
			if err := tx.Model(&models.Cart{}).Where("id = ?", cart.ID).Update("updated_at", cart.UpdatedAt).Error; err != nil {
				return translate(err, "failed to touch cart %s", cart.ID)
			}
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return translate(err, "failed to clear lines of cart %s", cart.ID)
		}
		if len(cart.Items) == 0 {
			return nil
		}
		for i := range cart.Items {
			cart.Items[i].CartID = cart.ID
		}
		if err := tx.Create(&cart.Items).Error; err != nil {
			return translate(err, "failed to store lines of cart %s", cart.ID)
		}
		return nil
	})
}
