package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// Payment tracks the gateway transaction for an order. At most one per order.
type Payment struct {
	ID               int64               `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID          int64               `gorm:"column:order_id;not null;uniqueIndex"`
	Reference        string              `gorm:"column:reference;not null;uniqueIndex"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AuthorizationURL string              `gorm:"column:authorization_url;not null"`
	GatewayResponse  json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
