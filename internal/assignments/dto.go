package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/internal/refcache"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
)

// ActorInput identifies the assignment being acted on and who is acting.
// Exactly one of CollectorID and CrewID must be set.
type ActorInput struct {
	OrderID      uuid.UUID
	AssignmentID uuid.UUID
	CollectorID  *uuid.UUID
	CrewID       *uuid.UUID
}

// CompleteInput adds completion evidence to ActorInput.
type CompleteInput struct {
	ActorInput
	CompletionNotes  *string
	CompletionPhotos []string
}

func (in ActorInput) validate() error {
	if (in.CollectorID == nil) == (in.CrewID == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of collector id or crew id is required")
	}
	if in.OrderID == uuid.Nil || in.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and assignment id are required")
	}
	return nil
}

// matches reports whether the caller is the actor recorded on a.
func (in ActorInput) matches(a *models.Assignment) bool {
	if in.CollectorID != nil {
		return a.CollectorID != nil && *a.CollectorID == *in.CollectorID
	}
	return a.CrewID != nil && *a.CrewID == *in.CrewID
}

func (in ActorInput) actorKind() string {
	if in.CrewID != nil {
		return outbox.ActorKindCrew
	}
	return outbox.ActorKindCollector
}

func (in ActorInput) actorID() string {
	if in.CrewID != nil {
		return in.CrewID.String()
	}
	return in.CollectorID.String()
}

// YardSummary is the yard attached to an order snapshot.
type YardSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
}

// OrderSnapshot is the order state returned next to an assignment.
type OrderSnapshot struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"order_status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	CustomerEmail *string             `json:"customer_email,omitempty"`
	Address       string              `json:"address"`
	Latitude      *float64            `json:"latitude,omitempty"`
	Longitude     *float64            `json:"longitude,omitempty"`
	PickupTime    *time.Time          `json:"pickup_time,omitempty"`
	Yard          *YardSummary        `json:"yard,omitempty"`
}

// AssignmentView is the API shape of an assignment.
type AssignmentView struct {
	ID               uuid.UUID              `json:"id"`
	OrderID          uuid.UUID              `json:"order_id"`
	CollectorID      *uuid.UUID             `json:"collector_id,omitempty"`
	CrewID           *uuid.UUID             `json:"crew_id,omitempty"`
	Status           enums.AssignmentStatus `json:"status"`
	AssignedAt       time.Time              `json:"assigned_at"`
	StartTime        *time.Time             `json:"start_time,omitempty"`
	EndTime          *time.Time             `json:"end_time,omitempty"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	CompletionNotes  *string                `json:"completion_notes,omitempty"`
	CompletionPhotos []string               `json:"completion_photos"`
	Collector        *refcache.CollectorRef `json:"collector,omitempty"`
	Crew             *refcache.CrewRef      `json:"crew,omitempty"`
	Order            *OrderSnapshot         `json:"order,omitempty"`
}

// Result is returned by start and complete.
type Result struct {
	Assignment     AssignmentView `json:"assignment"`
	Order          OrderSnapshot  `json:"order"`
	OrderCompleted bool           `json:"order_completed"`
}

func snapshotOf(order *models.WorkOrder) OrderSnapshot {
	snap := OrderSnapshot{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		CustomerEmail: order.CustomerEmail,
		Address:       order.Address,
		Latitude:      order.Latitude,
		Longitude:     order.Longitude,
		PickupTime:    order.PickupTime,
	}
	if order.Yard != nil {
		snap.Yard = &YardSummary{ID: order.Yard.ID, Name: order.Yard.Name, Address: order.Yard.Address}
	}
	return snap
}

func viewOf(a *models.Assignment) AssignmentView {
	view := AssignmentView{
		ID:               a.ID,
		OrderID:          a.OrderID,
		CollectorID:      a.CollectorID,
		CrewID:           a.CrewID,
		Status:           a.Status,
		AssignedAt:       a.AssignedAt,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		CompletedAt:      a.CompletedAt,
		CompletionNotes:  a.CompletionNotes,
		CompletionPhotos: []string(a.CompletionPhotos),
	}
	if view.CompletionPhotos == nil {
		view.CompletionPhotos = []string{}
	}
	if a.Collector != nil {
		view.Collector = &refcache.CollectorRef{
			ID:            a.Collector.ID,
			Name:          a.Collector.Name,
			Phone:         a.Collector.Phone,
			AverageRating: a.Collector.AverageRating,
		}
	}
	if a.Crew != nil {
		view.Crew = &refcache.CrewRef{ID: a.Crew.ID, Name: a.Crew.Name, MemberCount: len(a.Crew.Members)}
	}
	if a.Order != nil {
		snap := snapshotOf(a.Order)
		view.Order = &snap
	}
	return view
}
