package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/checkout"
	dbpkg "github.com/agrimarket/agrimarket-backend/pkg/db"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/paystack"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLoader interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// Checkout is what the buyer needs to continue to the hosted payment page.
type Checkout struct {
	OrderID          int64  `json:"order_id"`
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"payment_reference"`
}

type ServiceParams struct {
	Repo              *Repository
	Users             userLoader
	Gateway           paystack.Initializer
	TransactionRunner txRunner
	CallbackURL       string
	Metrics           *metrics.CheckoutMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

// Service starts gateway transactions for orders.
type Service struct {
	repo        *Repository
	users       userLoader
	gateway     paystack.Initializer
	tx          txRunner
	callbackURL string
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        params.Repo,
		users:       params.Users,
		gateway:     params.Gateway,
		tx:          params.TransactionRunner,
		callbackURL: params.CallbackURL,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// Reference builds the merchant reference sent to the gateway.
func Reference(orderID int64, at time.Time) string {
	return fmt.Sprintf("ORDER-%d-%d", orderID, at.Unix())
}

// Initiate opens a gateway transaction for the full order total and records the
// pending payment. Gateway failures leave nothing behind.
func (s *Service) Initiate(ctx context.Context, order *models.Order, email string) (*Checkout, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}

	data, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Amount:      checkout.MinorUnits(order.TotalAmount),
		Email:       email,
		CallbackURL: s.callbackURL,
		Reference:   Reference(order.ID, s.now()),
	})
	if err != nil {
		s.metrics.IncPaymentInitFailure()
		return nil, paymentInitFailed(order.ID, err)
	}

	payment := &models.Payment{
		OrderID:          order.ID,
		Reference:        data.Reference,
		Amount:           order.TotalAmount,
		Status:           enums.PaymentStatusPending,
		AuthorizationURL: data.AuthorizationURL,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, payment); err != nil {
			return err
		}
		return repo.StampOrderReference(ctx, order.ID, payment.Reference)
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_payments_order") {
			// another request initiated first; hand back its checkout
			if existing, findErr := s.repo.FindByOrderID(ctx, order.ID); findErr == nil {
				return checkoutFor(existing), nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record payment")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "reference": payment.Reference})
		s.logg.Info(logCtx, "payment initiated")
	}
	return checkoutFor(payment), nil
}

// Reinitiate returns the checkout for a pending order owned by userID, opening a
// new gateway transaction when none is pending.
func (s *Service) Reinitiate(ctx context.Context, userID, orderID int64) (*Checkout, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
	}
	if order.BuyerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
	}

	existing, err := s.repo.FindByOrderID(ctx, order.ID)
	switch {
	case err == nil && existing.Status == enums.PaymentStatusPending:
		return checkoutFor(existing), nil
	case err == nil:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid").
			WithDetails(map[string]any{"order_id": order.ID})
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load payment")
	}

	buyer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load buyer")
	}
	return s.Initiate(ctx, order, buyer.Email)
}

func checkoutFor(p *models.Payment) *Checkout {
	return &Checkout{OrderID: p.OrderID, AuthorizationURL: p.AuthorizationURL, Reference: p.Reference}
}

func paymentInitFailed(orderID int64, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodePaymentInit, cause, "payment initialization failed").
		WithDetails(map[string]any{"order_id": orderID})
}
