package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/internal/orders"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
)

const (
	defaultPendingOrderTTL = 72 * time.Hour
	defaultExpiryBatchSize = 200

	expiryReason = "payment_timeout"
)

type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Outbox    outbox.Emitter
	TTL       time.Duration
	BatchSize int
	Now       func() time.Time
}

// NewOrderExpiryJob cancels orders that stayed pending past TTL without a
// paid payment and queues order_cancelled for each.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		ttl:    ttl,
		batch:  batch,
		now:    now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	outbox outbox.Emitter
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("list pending orders: %w", err)
	}

	var (
		cancelled int64
		errs      error
	)
	for _, order := range stale {
		changed, err := j.expire(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %d: %w", order.ID, err))
			continue
		}
		if changed {
			cancelled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(stale),
		"cancelled":  cancelled,
	})
	j.logg.Info(logCtx, "order expiry loop complete")
	return cancelled, errs
}

// expire re-checks the order inside the transaction. A webhook that paid the
// order after it was listed wins.
func (j *orderExpiryJob) expire(ctx context.Context, order models.Order) (bool, error) {
	changed := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := j.orders.WithTx(tx).CancelIfUnpaid(ctx, order.ID)
		if err != nil || !ok {
			return err
		}
		changed = true
		now := j.now().UTC()
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    now,
			Data: outbox.OrderCancelledEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Reason:      expiryReason,
				CancelledAt: now,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
