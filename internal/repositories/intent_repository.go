package repositories

import (
	"context"

	"dryfruits/internal/models"

	"gorm.io/gorm"
)

// IntentRepository stores checkout intents keyed by gateway order id.
type IntentRepository interface {
	Create(ctx context.Context, intent *models.CheckoutIntent) error
	GetByID(ctx context.Context, id string) (*models.CheckoutIntent, error)
}

// GORMIntentRepository is a GORM implementation of IntentRepository.
type GORMIntentRepository struct {
	db *gorm.DB
}

// NewGORMIntentRepository creates a new instance of GORMIntentRepository.
func NewGORMIntentRepository(db *gorm.DB) *GORMIntentRepository {
	return &GORMIntentRepository{db: db}
}

// Create persists a checkout intent.
func (r *GORMIntentRepository) Create(ctx context.Context, intent *models.CheckoutIntent) error {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return translate(err, "failed to create checkout intent %s", intent.ID)
	}
	return nil
}

// GetByID loads the intent created for gateway order id.
func (r *GORMIntentRepository) GetByID(ctx context.Context, id string) (*models.CheckoutIntent, error) {
	var intent models.CheckoutIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		return nil, translate(err, "checkout intent %s", id)
	}
	return &intent, nil
}
