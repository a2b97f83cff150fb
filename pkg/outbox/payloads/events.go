package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
)

// WorkOrderCreatedEvent signals a new pickup job.
type WorkOrderCreatedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	Status         enums.OrderStatus `json:"status"`
	PickupTime     *time.Time        `json:"pickup_time,omitempty"`
}

// WorkOrderStatusChangedEvent is emitted on every order status transition.
type WorkOrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	PerformedBy    string            `json:"performed_by"`
	Notes          string            `json:"notes,omitempty"`
}

// AssignmentEvent is emitted when an assignment starts or completes.
type AssignmentEvent struct {
	AssignmentID   uuid.UUID              `json:"assignment_id"`
	OrderID        uuid.UUID              `json:"order_id"`
	CollectorID    *uuid.UUID             `json:"collector_id,omitempty"`
	CrewID         *uuid.UUID             `json:"crew_id,omitempty"`
	Status         enums.AssignmentStatus `json:"status"`
	OrderCompleted bool                   `json:"order_completed,omitempty"`
}
