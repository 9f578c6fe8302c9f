package products

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	dbpkg "github.com/agrimarket/agrimarket-backend/pkg/db"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
)

type productRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	ListByFarmer(ctx context.Context, farmerID int64) ([]models.Product, error)
	Delete(ctx context.Context, id int64) error
}

// Service exposes the farmer-facing product operations.
type Service struct {
	repo productRepository
}

// NewService builds a products service.
func NewService(repo productRepository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &Service{repo: repo}, nil
}

// ListForFarmer returns the products owned by farmerID.
func (s *Service) ListForFarmer(ctx context.Context, farmerID int64) ([]models.Product, error) {
	rows, err := s.repo.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list products")
	}
	return rows, nil
}

// DeleteForFarmer deletes a product the farmer owns. Products referenced by past
// order items are kept and reported as a conflict.
func (s *Service) DeleteForFarmer(ctx context.Context, farmerID, productID int64) error {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load product")
	}
	if product.FarmerID != farmerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another farmer")
	}

	if err := s.repo.Delete(ctx, productID); err != nil {
		if dbpkg.IsForeignKeyViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product is referenced by existing orders")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete product")
	}
	return nil
}
