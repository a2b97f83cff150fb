package timeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/dbtest"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/payloads"
)

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordAppendsAndEmitsOnTransition(t *testing.T) {
	conn := dbtest.Open(t)
	emitter := &recordingEmitter{}
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	svc, err := NewService(NewRepository(conn), emitter, fixedClock(now))
	require.NoError(t, err)

	order := &models.WorkOrder{ID: uuid.New(), OrderNumber: "WO-04032026-1", OrganizationID: uuid.New()}
	entry, err := svc.Record(context.Background(), conn, Entry{
		Order:       order,
		From:        enums.OrderStatusAssigned,
		To:          enums.OrderStatusInProgress,
		Notes:       "Collection started by collector",
		PerformedBy: "collector-1",
	})
	require.NoError(t, err)
	assert.True(t, entry.CreatedAt.Equal(now))

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventWorkOrderStatusChanged, emitter.events[0].EventType)
	data := emitter.events[0].Data.(payloads.WorkOrderStatusChangedEvent)
	assert.Equal(t, enums.OrderStatusAssigned, data.From)
	assert.Equal(t, "collector-1", data.PerformedBy)
}

func TestRecordWithoutTransitionOnlyAppends(t *testing.T) {
	conn := dbtest.Open(t)
	emitter := &recordingEmitter{}
	svc, err := NewService(NewRepository(conn), emitter, nil)
	require.NoError(t, err)

	order := &models.WorkOrder{ID: uuid.New()}
	_, err = svc.Record(context.Background(), conn, Entry{Order: order, To: enums.OrderStatusPending, Notes: "Order WO-1 created"})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), conn, Entry{Order: order, From: enums.OrderStatusInProgress, To: enums.OrderStatusInProgress})
	require.NoError(t, err)
	assert.Empty(t, emitter.events)

	entries, err := svc.List(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.PerformedBySystem, entries[0].PerformedBy)
}

func TestListOrdersByCreatedAtAscending(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), &recordingEmitter{}, nil)
	require.NoError(t, err)
	order := &models.WorkOrder{ID: uuid.New()}
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// written out of order on purpose; the backdated row must come first
	later := base.Add(2 * time.Hour)
	earlier := base.Add(-24 * time.Hour)
	for _, at := range []time.Time{base, later, earlier} {
		at := at
		_, err := svc.Record(context.Background(), conn, Entry{Order: order, To: enums.OrderStatusAssigned, At: &at})
		require.NoError(t, err)
	}

	entries, err := svc.List(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CreatedAt.Equal(earlier))
	assert.True(t, entries[1].CreatedAt.Equal(base))
	assert.True(t, entries[2].CreatedAt.Equal(later))
}

func TestListKeepsInsertionOrderForEqualTimestamps(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	svc, err := NewService(NewRepository(conn), &recordingEmitter{}, fixedClock(now))
	require.NoError(t, err)
	order := &models.WorkOrder{ID: uuid.New()}

	var written []uuid.UUID
	for i := 0; i < 10; i++ {
		status := enums.OrderStatusAssigned
		if i%2 == 1 {
			status = enums.OrderStatusInProgress
		}
		entry, err := svc.Record(context.Background(), conn, Entry{Order: order, To: status, Notes: fmt.Sprintf("step %d", i)})
		require.NoError(t, err)
		written = append(written, entry.ID)
	}

	entries, err := svc.List(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(written))
	for i, entry := range entries {
		assert.Equal(t, written[i], entry.ID)
		assert.Equal(t, fmt.Sprintf("step %d", i), entry.Notes)
		assert.True(t, entry.CreatedAt.Equal(now))
	}
}

func TestRecordValidatesInput(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)), &recordingEmitter{}, nil)
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), nil, Entry{To: enums.OrderStatusPending})
	require.Error(t, err)
	_, err = svc.Record(context.Background(), nil, Entry{Order: &models.WorkOrder{ID: uuid.New()}, To: "BOGUS"})
	require.Error(t, err)

	_, err = NewService(nil, &recordingEmitter{}, nil)
	require.Error(t, err)
	_, err = NewService(NewRepository(nil), nil, nil)
	require.Error(t, err)
}
