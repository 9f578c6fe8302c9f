package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a farmer listing.
type Product struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	FarmerID    int64           `gorm:"column:farmer_id;not null"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	ImageURL    *string         `gorm:"column:image_url"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
