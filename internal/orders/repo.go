package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindDetail(ctx context.Context, orderID int64) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	CancelIfUnpaid(ctx context.Context, orderID int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds an orders repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Payment").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// FindDetail loads the order with items and payment or returns gorm.ErrRecordNotFound.
func (r *repository) FindDetail(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payment").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByBuyer returns the buyer's orders newest first.
func (r *repository) ListByBuyer(ctx context.Context, buyerID int64) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// ListPendingBefore returns pending orders created before cutoff, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// CancelIfUnpaid moves a pending order to cancelled unless its payment is
// already paid. It reports whether the row changed.
func (r *repository) CancelIfUnpaid(ctx context.Context, orderID int64) (bool, error) {
	paid := r.db.Model(&models.Payment{}).
		Select("1").
		Where("payments.order_id = orders.id AND payments.status = ?", enums.PaymentStatusPaid)
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Where("NOT EXISTS (?)", paid).
		Update("status", enums.OrderStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
