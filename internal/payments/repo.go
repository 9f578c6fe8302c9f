package payments

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// Repository persists payments and the payment-related columns on orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a payments repository to db.
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

func (r *Repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// FindByOrderID returns the order's payment or gorm.ErrRecordNotFound.
func (r *Repository) FindByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByReferenceForUpdate locks the payment carrying the gateway reference.
func (r *Repository) FindByReferenceForUpdate(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaid moves a pending payment to paid. Zero rows affected means it was not pending.
func (r *Repository) MarkPaid(ctx context.Context, id int64, paidAt time.Time, gatewayResponse json.RawMessage) (int64, error) {
	updates := map[string]any{
		"status":     enums.PaymentStatusPaid,
		"paid_at":    paidAt,
		"updated_at": paidAt,
	}
	if len(gatewayResponse) > 0 {
		updates["gateway_response"] = gatewayResponse
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// FindOrder loads an order with its items.
func (r *Repository) FindOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// StampOrderReference records the gateway reference on a pending order.
func (r *Repository) StampOrderReference(ctx context.Context, orderID int64, reference string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"payment_reference": reference,
			"updated_at":        time.Now().UTC(),
		}).Error
}

// MarkOrderPaid moves a pending order to paid. Zero rows affected means it was not pending.
func (r *Repository) MarkOrderPaid(ctx context.Context, orderID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":     enums.OrderStatusPaid,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
