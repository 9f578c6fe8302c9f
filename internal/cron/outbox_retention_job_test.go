package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/dbtest"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
)

func TestOutboxRetentionDeletesOnlyOldPublishedRows(t *testing.T) {
	client, conn := dbtest.NewClient(t)
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: 1, Payload: json.RawMessage(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: 1, Payload: json.RawMessage(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: 2, Payload: json.RawMessage(`{}`), CreatedAt: old},
	}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         client,
		Repository: outbox.NewRepository(conn),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, rows[1].ID, remaining[0].ID)
	assert.Nil(t, remaining[1].PublishedAt, "unpublished rows are never pruned")
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         passthroughTx{},
		Repository: failingPruner{},
	})
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	assert.ErrorContains(t, err, "outbox retention")
}
