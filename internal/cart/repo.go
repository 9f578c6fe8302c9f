package cart

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
)

// Repository exposes persistence operations for cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Upsert writes the (user, product) line, replacing the quantity when it exists.
func (r *Repository) Upsert(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error) {
	now := time.Now().UTC()
	line := models.CartLine{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Omit("Product").
		Create(&line).Error
	if err != nil {
		return nil, err
	}

	var stored models.CartLine
	err = r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindLine returns the line if it belongs to userID.
func (r *Repository) FindLine(ctx context.Context, userID, lineID int64) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ? AND user_id = ?", lineID, userID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// UpdateQuantity sets the quantity on the user's line and returns rows affected.
func (r *Repository) UpdateQuantity(ctx context.Context, userID, lineID int64, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// DeleteLine removes the user's line and returns rows affected.
func (r *Repository) DeleteLine(ctx context.Context, userID, lineID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

// ListByUser returns the user's lines with their products.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.CartLine, error) {
	var rows []models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// LockByUser is ListByUser under FOR UPDATE. Call it inside a transaction.
func (r *Repository) LockByUser(ctx context.Context, userID int64) ([]models.CartLine, error) {
	var rows []models.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// DeleteByUser empties the user's cart.
func (r *Repository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}
