package products

import (
	"context"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
)

// Repository persists farmer products.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a products repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID returns the product or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListByFarmer returns the farmer's products, newest first.
func (r *Repository) ListByFarmer(ctx context.Context, farmerID int64) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("farmer_id = ?", farmerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// Delete removes the product. Referenced products fail with a foreign key violation.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}
