package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// LedgerEvent records an immutable money movement for a farmer on an order.
type LedgerEvent struct {
	ID        int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64                 `gorm:"column:order_id;not null"`
	FarmerID  int64                 `gorm:"column:farmer_id;not null"`
	Type      enums.LedgerEventType `gorm:"column:type;type:ledger_event_type;not null"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
