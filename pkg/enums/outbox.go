package enums

import "slices"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateWorkOrder  OutboxAggregateType = "work_order"
	AggregateAssignment OutboxAggregateType = "assignment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateWorkOrder,
	AggregateAssignment,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// OutboxEventType names a domain event queued in outbox_events.
type OutboxEventType string

const (
	EventWorkOrderCreated       OutboxEventType = "work_order.created"
	EventWorkOrderStatusChanged OutboxEventType = "work_order.status_changed"
	EventAssignmentStarted      OutboxEventType = "assignment.started"
	EventAssignmentCompleted    OutboxEventType = "assignment.completed"
)

var validEventTypes = []OutboxEventType{
	EventWorkOrderCreated,
	EventWorkOrderStatusChanged,
	EventAssignmentStarted,
	EventAssignmentCompleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validEventTypes, e)
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseEnum(validEventTypes, value, "outbox event type")
}
