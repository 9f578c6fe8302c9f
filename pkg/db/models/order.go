package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// Order is the immutable snapshot of a cart at checkout time.
type Order struct {
	ID               int64             `gorm:"column:id;primaryKey;autoIncrement"`
	BuyerID          int64             `gorm:"column:buyer_id;not null"`
	DeliveryAddress  string            `gorm:"column:delivery_address;not null"`
	Phone            string            `gorm:"column:phone;not null"`
	Notes            *string           `gorm:"column:notes"`
	TotalAmount      decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentReference *string           `gorm:"column:payment_reference"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;references:ID"`
	Payment          *Payment          `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
