package workorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalworkorders "github.com/angelmondragon/scrapfield-backend/internal/workorders"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/types"
)

type createOrderRequest struct {
	CustomerID     *uuid.UUID       `json:"customer_id"`
	LeadID         *uuid.UUID       `json:"lead_id"`
	YardID         *uuid.UUID       `json:"yard_id"`
	CrewID         *uuid.UUID       `json:"crew_id"`
	CustomerName   string           `json:"customer_name" validate:"required,max=200"`
	CustomerPhone  string           `json:"customer_phone" validate:"required,max=40"`
	CustomerEmail  *string          `json:"customer_email" validate:"omitempty,email"`
	Address        string           `json:"address" validate:"required"`
	Latitude       *float64         `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64         `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	VehicleDetails types.Payload    `json:"vehicle_details"`
	QuotedPrice    *decimal.Decimal `json:"quoted_price"`
	Photos         []string         `json:"photos"`
	Notes          *string          `json:"notes"`
	PickupTime     *time.Time       `json:"pickup_time"`
}

func (r createOrderRequest) toInput(organizationID uuid.UUID) internalworkorders.CreateOrderInput {
	return internalworkorders.CreateOrderInput{
		OrganizationID: organizationID,
		CustomerID:     r.CustomerID,
		LeadID:         r.LeadID,
		YardID:         r.YardID,
		CrewID:         r.CrewID,
		CustomerName:   r.CustomerName,
		CustomerPhone:  r.CustomerPhone,
		CustomerEmail:  r.CustomerEmail,
		Address:        r.Address,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		VehicleDetails: r.VehicleDetails,
		QuotedPrice:    r.QuotedPrice,
		Photos:         r.Photos,
		Notes:          r.Notes,
		PickupTime:     r.PickupTime,
	}
}

type updateOrderRequest struct {
	CustomerName   *string              `json:"customer_name" validate:"omitempty,max=200"`
	CustomerPhone  *string              `json:"customer_phone" validate:"omitempty,max=40"`
	CustomerEmail  *string              `json:"customer_email" validate:"omitempty,email"`
	Address        *string              `json:"address"`
	Latitude       *float64             `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64             `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	VehicleDetails types.Payload        `json:"vehicle_details"`
	PaymentStatus  *enums.PaymentStatus `json:"payment_status" validate:"omitempty,enum"`
	QuotedPrice    *decimal.Decimal     `json:"quoted_price"`
	ActualPrice    *decimal.Decimal     `json:"actual_price"`
	Photos         []string             `json:"photos"`
	Notes          *string              `json:"notes"`
	PickupTime     *time.Time           `json:"pickup_time"`
	OrderStatus    *enums.OrderStatus   `json:"order_status" validate:"omitempty,enum"`
	StatusNote     *string              `json:"status_note"`
}

func (r updateOrderRequest) toInput(stripped []string) internalworkorders.UpdateOrderInput {
	return internalworkorders.UpdateOrderInput{
		CustomerName:   r.CustomerName,
		CustomerPhone:  r.CustomerPhone,
		CustomerEmail:  r.CustomerEmail,
		Address:        r.Address,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		VehicleDetails: r.VehicleDetails,
		PaymentStatus:  r.PaymentStatus,
		QuotedPrice:    r.QuotedPrice,
		ActualPrice:    r.ActualPrice,
		Photos:         r.Photos,
		Notes:          r.Notes,
		PickupTime:     r.PickupTime,
		OrderStatus:    r.OrderStatus,
		StatusNote:     r.StatusNote,
		RelationKeys:   stripped,
	}
}

type assignOrderRequest struct {
	CollectorID uuid.UUID `json:"collector_id" validate:"required"`
	Notes       *string   `json:"notes"`
}

// OrderView is the dispatcher-facing representation of a work order.
type OrderView struct {
	ID                  uuid.UUID           `json:"id"`
	OrderNumber         string              `json:"order_number"`
	OrganizationID      uuid.UUID           `json:"organization_id"`
	CustomerID          *uuid.UUID          `json:"customer_id,omitempty"`
	LeadID              *uuid.UUID          `json:"lead_id,omitempty"`
	AssignedCollectorID *uuid.UUID          `json:"assigned_collector_id,omitempty"`
	CrewID              *uuid.UUID          `json:"crew_id,omitempty"`
	YardID              *uuid.UUID          `json:"yard_id,omitempty"`
	CustomerName        string              `json:"customer_name"`
	CustomerPhone       string              `json:"customer_phone"`
	CustomerEmail       *string             `json:"customer_email,omitempty"`
	Address             string              `json:"address"`
	Latitude            *float64            `json:"latitude,omitempty"`
	Longitude           *float64            `json:"longitude,omitempty"`
	VehicleDetails      types.Payload       `json:"vehicle_details,omitempty"`
	OrderStatus         enums.OrderStatus   `json:"order_status"`
	PaymentStatus       enums.PaymentStatus `json:"payment_status"`
	QuotedPrice         *decimal.Decimal    `json:"quoted_price,omitempty"`
	ActualPrice         *decimal.Decimal    `json:"actual_price,omitempty"`
	Photos              []string            `json:"photos"`
	Notes               *string             `json:"notes,omitempty"`
	PickupTime          *time.Time          `json:"pickup_time,omitempty"`
	Assignments         []AssignmentView    `json:"assignments,omitempty"`
	Timeline            []TimelineView      `json:"timeline,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

type AssignmentView struct {
	ID          uuid.UUID              `json:"id"`
	CollectorID *uuid.UUID             `json:"collector_id,omitempty"`
	CrewID      *uuid.UUID             `json:"crew_id,omitempty"`
	Status      enums.AssignmentStatus `json:"status"`
	AssignedAt  time.Time              `json:"assigned_at"`
	StartTime   *time.Time             `json:"start_time,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

type TimelineView struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     uuid.UUID         `json:"order_id"`
	Status      enums.OrderStatus `json:"status"`
	Notes       string            `json:"notes"`
	PerformedBy string            `json:"performed_by"`
	Latitude    *float64          `json:"latitude,omitempty"`
	Longitude   *float64          `json:"longitude,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func orderView(order *models.WorkOrder) OrderView {
	view := OrderView{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		OrganizationID:      order.OrganizationID,
		CustomerID:          order.CustomerID,
		LeadID:              order.LeadID,
		AssignedCollectorID: order.AssignedCollectorID,
		CrewID:              order.CrewID,
		YardID:              order.YardID,
		CustomerName:        order.CustomerName,
		CustomerPhone:       order.CustomerPhone,
		CustomerEmail:       order.CustomerEmail,
		Address:             order.Address,
		Latitude:            order.Latitude,
		Longitude:           order.Longitude,
		VehicleDetails:      order.VehicleDetails,
		OrderStatus:         order.OrderStatus,
		PaymentStatus:       order.PaymentStatus,
		QuotedPrice:         order.QuotedPrice,
		ActualPrice:         order.ActualPrice,
		Photos:              append([]string{}, order.Photos...),
		Notes:               order.Notes,
		PickupTime:          order.PickupTime,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	for _, a := range order.Assignments {
		view.Assignments = append(view.Assignments, AssignmentView{
			ID:          a.ID,
			CollectorID: a.CollectorID,
			CrewID:      a.CrewID,
			Status:      a.Status,
			AssignedAt:  a.AssignedAt,
			StartTime:   a.StartTime,
			CompletedAt: a.CompletedAt,
		})
	}
	view.Timeline = timelineViews(order.Timeline)
	return view
}

func timelineViews(entries []models.TimelineEntry) []TimelineView {
	out := make([]TimelineView, 0, len(entries))
	for _, e := range entries {
		out = append(out, TimelineView{
			ID:          e.ID,
			OrderID:     e.OrderID,
			Status:      e.Status,
			Notes:       e.Notes,
			PerformedBy: e.PerformedBy,
			Latitude:    e.Latitude,
			Longitude:   e.Longitude,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
