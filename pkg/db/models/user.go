package models

import (
	"time"

	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// User is the marketplace identity. Rows are provisioned by the identity service.
type User struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Username  string         `gorm:"column:username;not null"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null"`
	Phone     *string        `gorm:"column:phone"`
	Location  *string        `gorm:"column:location"`
	Verified  bool           `gorm:"column:verified;not null;default:false"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
