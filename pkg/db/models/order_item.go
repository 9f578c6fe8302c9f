package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem freezes the product name, farmer and unit price at order time.
type OrderItem struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"column:order_id;not null"`
	ProductID   int64           `gorm:"column:product_id;not null"`
	FarmerID    int64           `gorm:"column:farmer_id;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
