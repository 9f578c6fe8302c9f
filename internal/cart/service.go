package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/checkout"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
)

type productLoader interface {
	FindByID(ctx context.Context, id int64) (*models.Product, error)
}

// View is a cart with its live total.
type View struct {
	Items []models.CartLine
	Total decimal.Decimal
}

// Service exposes the buyer cart operations.
type Service interface {
	AddOrUpdate(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error)
	UpdateLine(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error)
	Remove(ctx context.Context, userID, lineID int64) error
	List(ctx context.Context, userID int64) (*View, error)
}

type service struct {
	repo     CartRepository
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, products: products}, nil
}

// AddOrUpdate sets the quantity of productID in the user's cart. Adding a product
// already in the cart replaces its quantity.
func (s *service) AddOrUpdate(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error) {
	if err := checkout.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load product")
	}

	line, err := s.repo.Upsert(ctx, userID, productID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "save cart line")
	}
	return line, nil
}

// UpdateLine changes the quantity of one of the user's lines.
func (s *service) UpdateLine(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error) {
	if err := checkout.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	affected, err := s.repo.UpdateQuantity(ctx, userID, lineID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update cart line")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	line, err := s.repo.FindLine(ctx, userID, lineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "reload cart line")
	}
	return line, nil
}

// Remove deletes one of the user's lines.
func (s *service) Remove(ctx context.Context, userID, lineID int64) error {
	affected, err := s.repo.DeleteLine(ctx, userID, lineID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete cart line")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

// List returns the user's lines and the total at current prices.
func (s *service) List(ctx context.Context, userID int64) (*View, error) {
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list cart")
	}
	return &View{Items: lines, Total: checkout.CartTotal(lines)}, nil
}
