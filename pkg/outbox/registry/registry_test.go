package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolvesStatusChange(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventWorkOrderStatusChanged,
		AggregateType: enums.AggregateWorkOrder,
		AggregateID:   orderID,
		CreatedAt:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Payload: mustEnvelope(t, payloads.WorkOrderStatusChangedEvent{
			OrderID: orderID,
			From:    enums.OrderStatusAssigned,
			To:      enums.OrderStatusInProgress,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "work-orders", resolved.Route.Topic)
	payload, ok := resolved.Payload.(*payloads.WorkOrderStatusChangedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, enums.OrderStatusInProgress, payload.To)
	assert.Equal(t, orderID, resolved.OrderID)

	msg := resolved.Message(event)
	assert.Equal(t, "work-orders", msg.Topic)
	assert.Equal(t, orderID.String(), msg.OrderingKey)
	assert.Equal(t, resolved.Envelope.EventID, msg.Attributes["event_id"])
	assert.Equal(t, "2026-03-01T09:30:00Z", msg.Attributes["created_at"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
	assert.JSONEq(t, string(event.Payload), string(msg.Data))
}

func TestAssignmentEventsAreKeyedByWorkOrder(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()
	assignmentID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventAssignmentCompleted,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignmentID,
		Payload: mustEnvelope(t, payloads.AssignmentEvent{
			AssignmentID:   assignmentID,
			OrderID:        orderID,
			Status:         enums.AssignmentStatusCompleted,
			OrderCompleted: true,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "assignments", resolved.Route.Topic)
	assert.Equal(t, orderID, resolved.OrderID)
	assert.Equal(t, assignmentID.String(), resolved.Message(models.OutboxEvent{AggregateID: assignmentID}).Attributes["aggregate_id"])
}

func TestAssignmentTopicFallsBack(t *testing.T) {
	reg, err := NewEventRegistry(config.PubSubConfig{WorkOrdersTopic: "events"})
	require.NoError(t, err)
	topic, ok := reg.Topic(enums.EventAssignmentStarted)
	require.True(t, ok)
	assert.Equal(t, "events", topic)
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, payloads.AssignmentEvent{AssignmentID: uuid.New()})

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType: "unknown.event", AggregateType: enums.AggregateWorkOrder, AggregateID: uuid.New(), Payload: valid,
		},
		"aggregate mismatch": {
			EventType: enums.EventAssignmentStarted, AggregateType: enums.AggregateWorkOrder, AggregateID: uuid.New(), Payload: valid,
		},
		"missing aggregate": {
			EventType: enums.EventAssignmentStarted, AggregateType: enums.AggregateAssignment, Payload: valid,
		},
		"bad envelope": {
			EventType: enums.EventAssignmentStarted, AggregateType: enums.AggregateAssignment, AggregateID: uuid.New(), Payload: json.RawMessage(`{`),
		},
		"null data": {
			EventType: enums.EventAssignmentStarted, AggregateType: enums.AggregateAssignment, AggregateID: uuid.New(),
			Payload: json.RawMessage(`{"version":1,"eventId":"x","data":null}`),
		},
		"wrong payload shape": {
			EventType: enums.EventAssignmentStarted, AggregateType: enums.AggregateAssignment, AggregateID: uuid.New(),
			Payload: json.RawMessage(`{"version":1,"eventId":"x","data":{"order_id":42}}`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err))
		})
	}
}

func TestIsNonRetryable(t *testing.T) {
	assert.False(t, IsNonRetryable(errors.New("timeout")))
	assert.True(t, IsNonRetryable(NewNonRetryableError(errors.New("bad"))))
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{WorkOrdersTopic: "work-orders", AssignmentsTopic: "assignments"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return env
}
