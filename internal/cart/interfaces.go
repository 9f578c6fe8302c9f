package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart and
// order services.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Upsert(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error)
	FindLine(ctx context.Context, userID, lineID int64) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID int64, quantity int) (int64, error)
	DeleteLine(ctx context.Context, userID, lineID int64) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]models.CartLine, error)
	LockByUser(ctx context.Context, userID int64) ([]models.CartLine, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}
