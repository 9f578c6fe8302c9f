package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultChannelPrefix  = "agrimarket.events"
	defaultPublishTimeout = 5 * time.Second
	maxIdleBackoff        = 10 * time.Second
	maxJitter             = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// broker is satisfied by the Redis client; Publish returns the receiver count.
type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, channel string, payload any) (int64, error)
}

type outboxRepository interface {
	FetchUnpublishedForUpdate(ctx context.Context, tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id int64, at time.Time) error
	MarkFailed(tx *gorm.DB, id int64, cause error) error
	MarkTerminal(tx *gorm.DB, id int64, cause error, attempts int) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Broker     broker
	Repository outboxRepository
	Metrics    *metrics.RelayMetrics
	Now        func() time.Time
}

// Service relays committed outbox rows to Redis channels named
// <prefix>.<event_type>. Delivery is at least once.
type Service struct {
	logg          *logger.Logger
	db            dbClient
	repo          outboxRepository
	broker        broker
	metrics       *metrics.RelayMetrics
	now           func() time.Time
	batchSize     int
	maxAttempts   int
	pollInterval  time.Duration
	channelPrefix string
}

func NewService(params ServiceParams) (*Service, error) {
	var missing []string
	if params.Config == nil {
		missing = append(missing, "config")
	}
	if params.Logger == nil {
		missing = append(missing, "logger")
	}
	if params.DB == nil {
		missing = append(missing, "database client")
	}
	if params.Broker == nil {
		missing = append(missing, "broker")
	}
	if params.Repository == nil {
		missing = append(missing, "outbox repository")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("outbox publisher: missing %s", strings.Join(missing, ", "))
	}

	cfg := params.Config.Outbox
	prefix := strings.TrimSuffix(strings.TrimSpace(cfg.ChannelPrefix), ".")
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		broker:        params.Broker,
		metrics:       params.Metrics,
		now:           now,
		batchSize:     positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:   positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:  time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		channelPrefix: cmp.Or(prefix, defaultChannelPrefix),
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx ends. A full batch is followed immediately by the next
// one; an empty batch waits one poll interval and a failed batch waits an
// exponentially growing delay.
func (s *Service) Run(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{{"database", s.db.Ping}, {"redis", s.broker.Ping}}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.pollInterval
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = nextBackoff(wait, s.pollInterval, maxIdleBackoff)
		case processed:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleepCtx(ctx, wait+jitter()); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func jitter() time.Duration {
	return rand.N(maxJitter)
}

var errMalformedEnvelope = errors.New("malformed outbox envelope")
