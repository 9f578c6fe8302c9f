package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/internal/cart"
	"github.com/agrimarket/agrimarket-backend/internal/payments"
	"github.com/agrimarket/agrimarket-backend/internal/users"
	"github.com/agrimarket/agrimarket-backend/pkg/checkout"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentInitiator interface {
	Initiate(ctx context.Context, order *models.Order, email string) (*payments.Checkout, error)
}

// Service turns carts into orders and serves the buyer's order history.
type Service interface {
	CreateOrder(ctx context.Context, userID int64, input checkout.DeliveryInput) (*payments.Checkout, error)
	Get(ctx context.Context, userID, orderID int64) (*OrderDetail, error)
	List(ctx context.Context, userID int64) ([]OrderSummary, error)
}

type ServiceParams struct {
	Repo              Repository
	Carts             cart.CartRepository
	Users             *users.Repository
	Payments          paymentInitiator
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Metrics           *metrics.CheckoutMetrics
	Logger            *logger.Logger
}

type service struct {
	repo     Repository
	carts    cart.CartRepository
	users    *users.Repository
	payments paymentInitiator
	outbox   outbox.Emitter
	tx       txRunner
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment initiator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		carts:    params.Carts,
		users:    params.Users,
		payments: params.Payments,
		outbox:   params.Outbox,
		tx:       params.TransactionRunner,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// CreateOrder snapshots the buyer's cart into a pending order, empties the cart
// and then opens the gateway transaction. The order survives a gateway failure
// so payment can be retried.
func (s *service) CreateOrder(ctx context.Context, userID int64, input checkout.DeliveryInput) (*payments.Checkout, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var (
		order *models.Order
		buyer *models.User
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		buyer, err = s.users.WithTx(tx).LockByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lock buyer")
		}

		carts := s.carts.WithTx(tx)
		lines, err := carts.LockByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lock cart")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		order = &models.Order{
			BuyerID:         userID,
			DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
			Phone:           strings.TrimSpace(input.Phone),
			Notes:           optionalString(input.Notes),
			TotalAmount:     checkout.CartTotal(lines),
			Status:          enums.OrderStatusPending,
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create order")
		}

		items := snapshotItems(order.ID, lines)
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create order items")
		}
		order.Items = items

		if _, err := carts.DeleteByUser(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clear cart")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleBuyer)},
			Data: outbox.OrderCreatedEvent{
				OrderID:     order.ID,
				BuyerID:     userID,
				TotalAmount: order.TotalAmount,
				ItemCount:   len(items),
				FarmerIDs:   farmerIDs(items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "queue order created event")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeEmptyCart) {
			s.metrics.IncEmptyCart()
		}
		return nil, err
	}
	s.metrics.IncOrderCreated()

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "total": order.TotalAmount.StringFixed(2)})
		s.logg.Info(logCtx, "order created")
	}

	result, err := s.payments.Initiate(ctx, order, buyer.Email)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "payment initiation failed", err)
		}
		if pkgerrors.Is(err, pkgerrors.CodePaymentInit) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInit, err, "payment initialization failed").
			WithDetails(map[string]any{"order_id": order.ID})
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
	}
	if order.BuyerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	return detailFromModel(order), nil
}

func (s *service) List(ctx context.Context, userID int64) ([]OrderSummary, error) {
	rows, err := s.repo.ListByBuyer(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list orders")
	}
	out := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryFromModel(row))
	}
	return out, nil
}

func snapshotItems(orderID int64, lines []models.CartLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		items = append(items, models.OrderItem{
			OrderID:     orderID,
			ProductID:   line.ProductID,
			FarmerID:    line.Product.FarmerID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.Product.Price,
			LineTotal:   checkout.LineTotal(line.Product.Price, line.Quantity),
		})
	}
	return items
}

func farmerIDs(items []models.OrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.FarmerID]; ok {
			continue
		}
		seen[item.FarmerID] = struct{}{}
		ids = append(ids, item.FarmerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
