package fieldorders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/geo"
	"github.com/angelmondragon/scrapfield-backend/pkg/pagination"
	"github.com/angelmondragon/scrapfield-backend/pkg/types"
)

// SortField names a sortable column of the collector order list.
type SortField string

const (
	SortByCreatedAt   SortField = "createdAt"
	SortByPickupTime  SortField = "pickupTime"
	SortByQuotedPrice SortField = "quotedPrice"
	SortByDistance    SortField = "distance"
)

var sortColumns = map[SortField]string{
	SortByCreatedAt:   "work_orders.created_at",
	SortByPickupTime:  "work_orders.pickup_time",
	SortByQuotedPrice: "work_orders.quoted_price",
}

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter is the SQL-expressible part of a query. Every field is optional and
// all set fields are AND-combined.
type Filter struct {
	Statuses      []enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	PickupFrom    *time.Time
	PickupTo      *time.Time
	YardID        *uuid.UUID
	Search        string
	HasPhotos     *bool
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}

// Query drives GetWorkOrders.
type Query struct {
	Filter
	// Near enables the geofilter; orders without coordinates never match it.
	Near      *geo.Point
	RadiusKm  *float64
	SortBy    SortField
	SortOrder SortOrder
	Page      pagination.Params
}

func (q *Query) normalize(defaultRadiusKm float64) error {
	for _, status := range q.Statuses {
		if !status.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
		}
	}
	if q.PaymentStatus != nil && !q.PaymentStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if q.Near != nil {
		if err := validatePoint(*q.Near, "near"); err != nil {
			return err
		}
		if q.RadiusKm == nil {
			radius := defaultRadiusKm
			q.RadiusKm = &radius
		}
		if *q.RadiusKm <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "radiusKm must be positive")
		}
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return pkgerrors.New(pkgerrors.CodeValidation, "minPrice exceeds maxPrice")
	}
	q.Search = strings.TrimSpace(q.Search)

	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if _, ok := sortColumns[q.SortBy]; !ok && q.SortBy != SortByDistance {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sortBy %q", q.SortBy))
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = SortDesc
	case SortAsc, SortDesc:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sortOrder %q", q.SortOrder))
	}
	q.Page = q.Page.Normalize()
	return nil
}

// inMemory reports whether filtering or ordering must happen after the fetch.
func (q Query) inMemory() bool {
	return q.Near != nil || q.SortBy == SortByDistance
}

func validatePoint(p geo.Point, field string) error {
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" coordinates out of range")
	}
	return nil
}

// StatusUpdate is a collector-initiated status change.
type StatusUpdate struct {
	Status           enums.OrderStatus
	Notes            *string
	ActualPrice      *decimal.Decimal
	CompletionPhotos []string
	Photos           []string
	// Timestamp backdates the timeline entry; it is not checked against the order's creation time.
	Timestamp *time.Time
	Latitude  *float64
	Longitude *float64
	// Location of the collector, used only to compute distance on the returned order.
	Location *geo.Point
}

func (in StatusUpdate) validate() error {
	if !in.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if in.ActualPrice != nil && in.ActualPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "actual_price must not be negative")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be supplied together")
	}
	if in.Latitude != nil {
		if err := validatePoint(geo.Point{Latitude: *in.Latitude, Longitude: *in.Longitude}, "status"); err != nil {
			return err
		}
	}
	return nil
}

// Customer is the contact block of a mobile order.
type Customer struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email,omitempty"`
}

// Location is the pickup point with optional routing estimates.
type Location struct {
	Address           string   `json:"address"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	Distance          *float64 `json:"distance,omitempty"`
	EstimatedDuration *int     `json:"estimated_duration,omitempty"`
}

// YardView is the drop-off yard.
type YardView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

// CrewView summarises the crew on an order.
type CrewView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
}

// AssignmentInfo describes who works the order and where it goes.
type AssignmentInfo struct {
	CollectorID *uuid.UUID `json:"collector_id,omitempty"`
	Yard        *YardView  `json:"yard,omitempty"`
	Crew        *CrewView  `json:"crew,omitempty"`
}

// StatusView carries both status axes.
type StatusView struct {
	Order   enums.OrderStatus   `json:"order"`
	Payment enums.PaymentStatus `json:"payment"`
}

// Pricing holds quote and realised price.
type Pricing struct {
	QuotedPrice *decimal.Decimal `json:"quoted_price,omitempty"`
	ActualPrice *decimal.Decimal `json:"actual_price,omitempty"`
}

// Route is the pickup window and leg to the yard.
type Route struct {
	PickupTime     *time.Time `json:"pickup_time,omitempty"`
	YardDistanceKm *float64   `json:"yard_distance_km,omitempty"`
}

// TimelineView is one audit entry.
type TimelineView struct {
	Status      enums.OrderStatus `json:"status"`
	Notes       string            `json:"notes"`
	PerformedBy string            `json:"performed_by"`
	Latitude    *float64          `json:"latitude,omitempty"`
	Longitude   *float64          `json:"longitude,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// MobileOrder is the collector app's shape of a work order.
type MobileOrder struct {
	ID          uuid.UUID      `json:"id"`
	OrderNumber string         `json:"order_number"`
	Customer    Customer       `json:"customer"`
	Location    Location       `json:"location"`
	Vehicle     types.Payload  `json:"vehicle"`
	Assignment  AssignmentInfo `json:"assignment"`
	Status      StatusView     `json:"status"`
	Pricing     Pricing        `json:"pricing"`
	Route       Route          `json:"route"`
	Photos      []string       `json:"photos"`
	Notes       *string        `json:"notes,omitempty"`
	Timeline    []TimelineView `json:"timeline"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Summary aggregates the filtered set, ignoring the geofilter.
type Summary struct {
	Total            int64                       `json:"total"`
	ByStatus         map[enums.OrderStatus]int64 `json:"by_status"`
	CompletedRevenue decimal.Decimal             `json:"completed_revenue"`
}

// ListResult is one page of mobile orders.
type ListResult struct {
	Orders     []MobileOrder   `json:"orders"`
	Pagination pagination.Page `json:"pagination"`
	Summary    Summary         `json:"summary"`
}

// WindowStats covers orders created inside one reporting window.
type WindowStats struct {
	Total     int64           `json:"total"`
	Completed int64           `json:"completed"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Stats is the collector dashboard.
type Stats struct {
	Today          WindowStats `json:"today"`
	Week           WindowStats `json:"week"`
	Month          WindowStats `json:"month"`
	AllTime        WindowStats `json:"all_time"`
	CompletionRate float64     `json:"completion_rate"`
	AverageRating  float64     `json:"average_rating"`
}
