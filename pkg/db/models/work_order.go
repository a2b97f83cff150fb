package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/types"
)

// WorkOrder is a single scrap pickup job.
type WorkOrder struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber         string              `gorm:"column:order_number;not null"`
	OrganizationID      uuid.UUID           `gorm:"column:organization_id;type:uuid;not null"`
	CustomerID          *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	LeadID              *uuid.UUID          `gorm:"column:lead_id;type:uuid"`
	AssignedCollectorID *uuid.UUID          `gorm:"column:assigned_collector_id;type:uuid"`
	CrewID              *uuid.UUID          `gorm:"column:crew_id;type:uuid"`
	YardID              *uuid.UUID          `gorm:"column:yard_id;type:uuid"`
	CustomerName        string              `gorm:"column:customer_name;not null"`
	CustomerPhone       string              `gorm:"column:customer_phone;not null"`
	CustomerEmail       *string             `gorm:"column:customer_email"`
	Address             string              `gorm:"column:address;not null"`
	Latitude            *float64            `gorm:"column:latitude"`
	Longitude           *float64            `gorm:"column:longitude"`
	VehicleDetails      types.Payload       `gorm:"column:vehicle_details;type:jsonb;serializer:json"`
	OrderStatus         enums.OrderStatus   `gorm:"column:order_status;not null;default:'PENDING'"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;not null;default:'UNPAID'"`
	QuotedPrice         *decimal.Decimal    `gorm:"column:quoted_price;type:numeric(12,2)"`
	ActualPrice         *decimal.Decimal    `gorm:"column:actual_price;type:numeric(12,2)"`
	Photos              pq.StringArray      `gorm:"column:photos;type:text[]"`
	Notes               *string             `gorm:"column:notes"`
	PickupTime          *time.Time          `gorm:"column:pickup_time"`
	Yard                *Yard               `gorm:"foreignKey:YardID"`
	Crew                *Crew               `gorm:"foreignKey:CrewID"`
	AssignedCollector   *Collector          `gorm:"foreignKey:AssignedCollectorID"`
	Assignments         []Assignment        `gorm:"foreignKey:OrderID"`
	Timeline            []TimelineEntry     `gorm:"foreignKey:OrderID"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (WorkOrder) TableName() string { return "work_orders" }

func (o *WorkOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Revenue is the realised price when present, otherwise the quote.
func (o WorkOrder) Revenue() decimal.Decimal {
	if o.ActualPrice != nil {
		return *o.ActualPrice
	}
	if o.QuotedPrice != nil {
		return *o.QuotedPrice
	}
	return decimal.Zero
}

// HasCoordinates reports whether both latitude and longitude are set.
func (o WorkOrder) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}
