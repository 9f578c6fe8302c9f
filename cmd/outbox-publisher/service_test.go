package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{ID: 1, EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: 10, Payload: mustEnvelopePayload(t, "event-one")},
			{ID: 2, EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: 10, Payload: mustEnvelopePayload(t, "event-two")},
		},
	}
	broker := &fakeBroker{errs: []error{errors.New("connection reset"), nil}}
	service := newTestService(t, repo, broker, nil, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != 1 {
		t.Fatalf("unexpected failed rows: %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != 2 {
		t.Fatalf("unexpected published rows: %v", repo.published)
	}
}

func TestServicePublishesToEventChannel(t *testing.T) {
	payload := mustEnvelopePayload(t, "evt-1")
	repo := &fakeRepo{events: []models.OutboxEvent{
		{ID: 7, EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: 3, Payload: payload},
	}}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, &config.OutboxConfig{ChannelPrefix: "market.events."}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(broker.sent) != 1 {
		t.Fatalf("expected one publish got %d", len(broker.sent))
	}
	if broker.sent[0].channel != "market.events.order_paid" {
		t.Fatalf("unexpected channel %q", broker.sent[0].channel)
	}
	if broker.sent[0].payload != string(payload) {
		t.Fatalf("payload not relayed verbatim")
	}
}

func TestServiceMalformedEnvelopeIsTerminal(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		{ID: 4, EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: 1, Payload: json.RawMessage(`{"data":{}}`)},
	}}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, nil, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(broker.sent) != 0 {
		t.Fatalf("malformed row should not reach the broker")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != 4 {
		t.Fatalf("expected row 4 parked, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal rows are not retried")
	}
}

func TestServiceMaxAttemptsIsTerminal(t *testing.T) {
	reg := prometheus.NewRegistry()
	relay := metrics.NewRelayMetrics(reg)
	repo := &fakeRepo{events: []models.OutboxEvent{
		{ID: 5, EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: 1, Payload: mustEnvelopePayload(t, "e"), AttemptCount: 1},
	}}
	broker := &fakeBroker{errs: []error{errors.New("timeout")}}
	service := newTestService(t, repo, broker, &config.OutboxConfig{BatchSize: 1, MaxAttempts: 2}, relay)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark, got %v", repo.terminal)
	}
	count, err := testutil.GatherAndCount(reg, "agrimarket_outbox_publish_failures_total")
	if err != nil || count != 1 {
		t.Fatalf("expected one failure series, got %d (%v)", count, err)
	}
}

func TestServiceEmptyBatch(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeBroker{}, nil, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle batch, got processed=%v err=%v", processed, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeBroker{}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(500*time.Millisecond, 500*time.Millisecond, time.Second); got != time.Second {
		t.Fatalf("expected 1s got %s", got)
	}
	if got := nextBackoff(time.Second, 500*time.Millisecond, time.Second); got != time.Second {
		t.Fatalf("expected cap at 1s got %s", got)
	}
}

func TestClassifyParksMalformedAndExhaustedRows(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeBroker{}, &config.OutboxConfig{MaxAttempts: 3}, nil)
	transient := errors.New("timeout")

	if got := service.classify(models.OutboxEvent{AttemptCount: 0}, transient); got != outcomeRetry {
		t.Fatalf("first failure should retry, got %s", got)
	}
	if got := service.classify(models.OutboxEvent{AttemptCount: 2}, transient); got != outcomeParked {
		t.Fatalf("third failure should park, got %s", got)
	}
	malformed := fmt.Errorf("%w: missing event id", errMalformedEnvelope)
	if got := service.classify(models.OutboxEvent{}, malformed); got != outcomeParked {
		t.Fatalf("malformed envelope should park, got %s", got)
	}
}

func TestNewServiceListsMissingDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"logger", "database client", "broker", "outbox repository"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestServiceAppliesDefaults(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeBroker{}, &config.OutboxConfig{ChannelPrefix: " "}, nil)
	if service.batchSize != defaultBatchSize || service.maxAttempts != defaultMaxAttempts {
		t.Fatalf("unexpected defaults batch=%d attempts=%d", service.batchSize, service.maxAttempts)
	}
	if service.channelPrefix != defaultChannelPrefix {
		t.Fatalf("unexpected prefix %q", service.channelPrefix)
	}
}

func TestJitterStaysBelowCap(t *testing.T) {
	for i := 0; i < 100; i++ {
		if d := jitter(); d < 0 || d >= maxJitter {
			t.Fatalf("jitter out of range: %s", d)
		}
	}
}

func newTestService(t *testing.T, repo outboxRepository, b broker, outboxCfgOverride *config.OutboxConfig, relay *metrics.RelayMetrics) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 10, MaxAttempts: 5}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	service, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: outboxCfg},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         &fakeDB{},
		Broker:     b,
		Repository: repo,
		Metrics:    relay,
		Now:        func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []int64
	failed    []int64
	terminal  []int64
}

func (f *fakeRepo) FetchUnpublishedForUpdate(ctx context.Context, tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(tx *gorm.DB, id int64, at time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(tx *gorm.DB, id int64, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminal(tx *gorm.DB, id int64, cause error, attempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type sentMessage struct {
	channel string
	payload any
}

type fakeBroker struct {
	errs []error
	sent []sentMessage
}

func (f *fakeBroker) Ping(context.Context) error {
	return nil
}

func (f *fakeBroker) Publish(_ context.Context, channel string, payload any) (int64, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	f.sent = append(f.sent, sentMessage{channel: channel, payload: payload})
	return 1, nil
}
