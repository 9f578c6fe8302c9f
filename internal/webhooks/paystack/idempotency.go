package paystackwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GuardStore is the Redis surface the guard needs.
type GuardStore interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	WebhookKey(provider, id string) string
}

// IdempotencyGuard remembers deliveries that were already applied so exact
// duplicates skip the database. The compare-and-swap in Service is what makes
// replays safe; the guard only saves the round trip.
type IdempotencyGuard struct {
	store    GuardStore
	ttl      time.Duration
	provider string
}

func NewIdempotencyGuard(store GuardStore, ttl time.Duration, provider string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	return &IdempotencyGuard{
		store:    store,
		ttl:      ttl,
		provider: provider,
	}, nil
}

// CheckAndMark reports whether the delivery was seen before, marking it otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	key := g.store.WebhookKey(g.provider, deliveryID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook key: %w", err)
	}
	return !set, nil
}

// Delete releases the mark so a failed delivery can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	return g.store.Del(ctx, g.store.WebhookKey(g.provider, deliveryID))
}
