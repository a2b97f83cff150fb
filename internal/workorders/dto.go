package workorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/types"
)

// CreateOrderInput carries the fields accepted when a pickup job is created.
type CreateOrderInput struct {
	OrganizationID uuid.UUID
	CustomerID     *uuid.UUID
	LeadID         *uuid.UUID
	YardID         *uuid.UUID
	CrewID         *uuid.UUID
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  *string
	Address        string
	Latitude       *float64
	Longitude      *float64
	VehicleDetails types.Payload
	QuotedPrice    *decimal.Decimal
	Photos         []string
	Notes          *string
	PickupTime     *time.Time
}

// UpdateOrderInput is a partial update. Nil fields are left untouched.
type UpdateOrderInput struct {
	CustomerName   *string
	CustomerPhone  *string
	CustomerEmail  *string
	Address        *string
	Latitude       *float64
	Longitude      *float64
	VehicleDetails types.Payload
	PaymentStatus  *enums.PaymentStatus
	QuotedPrice    *decimal.Decimal
	ActualPrice    *decimal.Decimal
	Photos         []string
	Notes          *string
	PickupTime     *time.Time
	OrderStatus    *enums.OrderStatus
	// StatusNote is written to the timeline when OrderStatus changes.
	StatusNote *string
	// RelationKeys holds foreign keys the caller tried to set; they are dropped.
	RelationKeys []string
}

// AssignOrderInput names the collector an order is handed to.
type AssignOrderInput struct {
	CollectorID uuid.UUID
	Notes       *string
}

// relationKeys are only changed by dedicated operations.
var relationKeys = map[string]struct{}{
	"organization_id":       {},
	"customer_id":           {},
	"lead_id":               {},
	"assigned_collector_id": {},
	"collector_id":          {},
	"yard_id":               {},
	"crew_id":               {},
}

// IsRelationKey reports whether key names a relational foreign key.
func IsRelationKey(key string) bool {
	_, ok := relationKeys[key]
	return ok
}

// apply copies the set fields onto order.
func (in UpdateOrderInput) apply(order *models.WorkOrder) {
	if in.CustomerName != nil {
		order.CustomerName = *in.CustomerName
	}
	if in.CustomerPhone != nil {
		order.CustomerPhone = *in.CustomerPhone
	}
	if in.CustomerEmail != nil {
		order.CustomerEmail = in.CustomerEmail
	}
	if in.Address != nil {
		order.Address = *in.Address
	}
	if in.Latitude != nil {
		order.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		order.Longitude = in.Longitude
	}
	if in.VehicleDetails != nil {
		order.VehicleDetails = in.VehicleDetails
	}
	if in.PaymentStatus != nil {
		order.PaymentStatus = *in.PaymentStatus
	}
	if in.QuotedPrice != nil {
		order.QuotedPrice = in.QuotedPrice
	}
	if in.ActualPrice != nil {
		order.ActualPrice = in.ActualPrice
	}
	if in.Photos != nil {
		order.Photos = pq.StringArray(in.Photos)
	}
	if in.Notes != nil {
		order.Notes = in.Notes
	}
	if in.PickupTime != nil {
		pickup := in.PickupTime.UTC()
		order.PickupTime = &pickup
	}
}
