package paystackwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/internal/payments"
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

type saleCreditor interface {
	CreditSale(ctx context.Context, tx *gorm.DB, orderID int64, items []models.OrderItem) (int, error)
}

type ServiceParams struct {
	Payments          *payments.Repository
	Ledger            saleCreditor
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

// Service applies verified Paystack events to payments and orders.
type Service struct {
	payments *payments.Repository
	ledger   saleCreditor
	outbox   outbox.Emitter
	txRunner txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		payments: params.Payments,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// HandleEvent applies event and reports the outcome label. raw is stored on the
// payment as the gateway response. Only storage failures return an error.
func (s *Service) HandleEvent(ctx context.Context, event *Event, raw []byte) (string, error) {
	if event == nil {
		return metrics.WebhookIgnored, nil
	}
	switch event.Event {
	case EventChargeSuccess:
		return s.applyChargeSuccess(ctx, event, raw)
	default:
		return metrics.WebhookIgnored, nil
	}
}

func (s *Service) applyChargeSuccess(ctx context.Context, event *Event, raw []byte) (string, error) {
	reference := event.Data.Reference
	if reference == "" {
		return metrics.WebhookIgnored, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "payment_reference", reference)
	}

	outcome := metrics.WebhookApplied
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.payments.WithTx(tx)

		payment, err := repo.FindByReferenceForUpdate(ctx, reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.warn(ctx, "webhook for unknown payment reference")
				outcome = metrics.WebhookIgnored
				return nil
			}
			return err
		}
		if payment.Status == enums.PaymentStatusPaid {
			outcome = metrics.WebhookDuplicate
			return nil
		}
		if event.Data.Amount != 0 && event.Data.Amount != checkout.MinorUnits(payment.Amount) {
			s.warn(s.withFields(ctx, map[string]any{
				"expected_amount": checkout.MinorUnits(payment.Amount),
				"event_amount":    event.Data.Amount,
			}), "webhook amount does not match payment")
			outcome = metrics.WebhookIgnored
			return nil
		}

		paidAt := s.now()
		rows, err := repo.MarkPaid(ctx, payment.ID, paidAt, json.RawMessage(raw))
		if err != nil {
			return err
		}
		if rows == 0 {
			outcome = metrics.WebhookDuplicate
			return nil
		}

		order, err := repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		rows = 0
		if order.Status.CanTransitionTo(enums.OrderStatusPaid) {
			if rows, err = repo.MarkOrderPaid(ctx, order.ID, paidAt); err != nil {
				return err
			}
		}
		if rows == 0 {
			s.warn(s.withFields(ctx, map[string]any{"order_id": order.ID, "status": order.Status}),
				"payment confirmed for order that is not pending")
			return nil
		}

		if _, err := s.ledger.CreditSale(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    paidAt,
			Data: outbox.OrderPaidEvent{
				OrderID:          order.ID,
				BuyerID:          order.BuyerID,
				PaymentReference: payment.Reference,
				Amount:           payment.Amount,
				PaidAt:           paidAt,
			},
		})
	})
	if err != nil {
		return metrics.WebhookFailed, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "apply charge.success")
	}
	if outcome == metrics.WebhookApplied && s.logg != nil {
		s.logg.Info(ctx, "payment confirmed")
	}
	return outcome, nil
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}
