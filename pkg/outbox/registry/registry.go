// Package registry routes outbox rows to Pub/Sub topics and decodes their payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/scrapfield-backend/pkg/pubsub"
)

// Route links an event type to its aggregate, topic and payload decoder.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	// decode returns the typed payload and the work order it belongs to.
	decode func(data json.RawMessage) (any, uuid.UUID, error)
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
	// OrderID groups events of one work order, assignment events included.
	OrderID uuid.UUID
}

// Message builds the Pub/Sub message for the row.
func (r *ResolvedEvent) Message(event models.OutboxEvent) pubsub.Message {
	attrs := map[string]string{
		"event_id":       r.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"schema_version": strconv.Itoa(r.Envelope.Version),
	}
	key := ""
	if r.OrderID != uuid.Nil {
		key = r.OrderID.String()
		attrs["work_order_id"] = key
	}
	return pubsub.Message{
		Topic:       r.Route.Topic,
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: key,
	}
}

// EventRegistry maps each supported event type to its route.
type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NonRetryableError marks a row that will never publish, no matter how often it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err to stop retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

// NewEventRegistry sends order events to the work order topic and assignment
// events to the assignment topic, which falls back to the work order topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.WorkOrdersTopic == "" {
		return nil, fmt.Errorf("work orders topic is required")
	}
	assignmentsTopic := cfg.AssignmentsTopic
	if assignmentsTopic == "" {
		assignmentsTopic = cfg.WorkOrdersTopic
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route)}
	reg.add(route(enums.EventWorkOrderCreated, enums.AggregateWorkOrder, cfg.WorkOrdersTopic,
		func(p *payloads.WorkOrderCreatedEvent) uuid.UUID { return p.OrderID }))
	reg.add(route(enums.EventWorkOrderStatusChanged, enums.AggregateWorkOrder, cfg.WorkOrdersTopic,
		func(p *payloads.WorkOrderStatusChangedEvent) uuid.UUID { return p.OrderID }))
	reg.add(route(enums.EventAssignmentStarted, enums.AggregateAssignment, assignmentsTopic,
		func(p *payloads.AssignmentEvent) uuid.UUID { return p.OrderID }))
	reg.add(route(enums.EventAssignmentCompleted, enums.AggregateAssignment, assignmentsTopic,
		func(p *payloads.AssignmentEvent) uuid.UUID { return p.OrderID }))
	return reg, nil
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, orderOf func(*T) uuid.UUID) Route {
	return Route{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(data json.RawMessage) (any, uuid.UUID, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, uuid.Nil, err
			}
			return payload, orderOf(payload), nil
		},
	}
}

func (r *EventRegistry) add(rt Route) {
	r.routes[rt.EventType] = rt
}

// Topic returns the topic configured for eventType.
func (r *EventRegistry) Topic(eventType enums.OutboxEventType) (string, bool) {
	rt, ok := r.routes[eventType]
	return rt.Topic, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if rt.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", rt.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}

	payload, orderID, err := rt.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if orderID == uuid.Nil && event.AggregateType == enums.AggregateWorkOrder {
		orderID = event.AggregateID
	}

	return &ResolvedEvent{
		Route:    rt,
		Envelope: envelope,
		Payload:  payload,
		OrderID:  orderID,
	}, nil
}
