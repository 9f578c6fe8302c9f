package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
)

// outcome is what happened to one row in a batch.
type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeParked    outcome = "parked"
)

// processBatch claims one batch and relays it. Claimed rows stay locked until
// the batch commits, so a second relay skips them. It reports whether any row
// was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveBatch(time.Since(started)) }()

	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForUpdate(ctx, tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.relay(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed > 0, err
}

// relay publishes one row and records the outcome on it. Only bookkeeping
// failures are returned; a broker failure is recorded and the batch goes on.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"channel":        s.channel(event),
		"attempt_count":  event.AttemptCount,
	})

	receivers, pubErr := s.publish(ctx, event)
	if pubErr == nil {
		if err := s.repo.MarkPublished(tx, event.ID, s.now()); err != nil {
			return fmt.Errorf("mark outbox %d published: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"receivers": receivers,
			"outcome":   outcomePublished,
		}), "outbox event published")
		return nil
	}

	s.metrics.IncFailed(string(event.EventType))
	result := s.classify(event, pubErr)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"outcome": result,
		"error":   pubErr.Error(),
	})

	if result == outcomeRetry {
		s.logg.Warn(logCtx, "outbox publish failed")
		if err := s.repo.MarkFailed(tx, event.ID, pubErr); err != nil {
			return fmt.Errorf("mark outbox %d failed: %w", event.ID, err)
		}
		return nil
	}

	s.logg.Warn(logCtx, "outbox event parked, it will not be retried")
	if err := s.repo.MarkTerminal(tx, event.ID, pubErr, s.maxAttempts); err != nil {
		return fmt.Errorf("park outbox %d: %w", event.ID, err)
	}
	return nil
}

// classify parks rows that can never be relayed and rows whose next failure
// would reach the attempt ceiling.
func (s *Service) classify(event models.OutboxEvent, cause error) outcome {
	if errors.Is(cause, errMalformedEnvelope) || event.AttemptCount+1 >= s.maxAttempts {
		return outcomeParked
	}
	return outcomeRetry
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent) (int64, error) {
	if _, err := outbox.DecodeEnvelope(event.Payload); err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformedEnvelope, err)
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.broker.Publish(publishCtx, s.channel(event), string(event.Payload))
}

func (s *Service) channel(event models.OutboxEvent) string {
	return s.channelPrefix + "." + string(event.EventType)
}
