package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

var errNoTx = errors.New("outbox writes need the caller's transaction")

// DomainEvent is what producers hand to the Emitter. Data is marshalled into
// the envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   int64
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

// Emitter queues domain events inside a caller-owned transaction, so an event
// exists exactly when the state change that caused it commits.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo  *Repository
	logg  *logger.Logger
	newID func() string
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, newID: uuid.NewString}
}

// Emit queues event. A second event of the same type for the same aggregate
// violates ux_outbox_events_event_aggregate.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, eventID, err := s.row(tx, event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("queue %s event: %w", event.EventType, err)
	}
	s.queued(ctx, event, eventID)
	return nil
}

// EmitIfNotExists queues event unless the aggregate already has one of its
// type. Webhook retries rely on it to queue order_paid once.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, eventID, err := s.row(tx, event)
	if err != nil {
		return err
	}
	inserted, err := s.repo.InsertIfAbsent(tx, row)
	if err != nil {
		return fmt.Errorf("queue %s event: %w", event.EventType, err)
	}
	if inserted {
		s.queued(ctx, event, eventID)
	}
	return nil
}

func (s *Service) row(tx *gorm.DB, event DomainEvent) (*models.OutboxEvent, string, error) {
	if tx == nil {
		return nil, "", errNoTx
	}
	if !event.EventType.IsValid() || !event.AggregateType.IsValid() {
		return nil, "", fmt.Errorf("unknown outbox event %q on aggregate %q", event.EventType, event.AggregateType)
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	env := PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    s.newID(),
		OccurredAt: occurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, "", err
	}
	return &models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, env.EventID, nil
}

func (s *Service) queued(ctx context.Context, event DomainEvent, eventID string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":       eventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}), "outbox event queued")
}
