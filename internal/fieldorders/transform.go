package fieldorders

import (
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/geo"
)

// transformer maps stored orders to the mobile shape.
type transformer struct {
	speedKmh float64
}

func (t transformer) order(order *models.WorkOrder, from *geo.Point) MobileOrder {
	out := MobileOrder{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Customer: Customer{
			Name:  order.CustomerName,
			Phone: order.CustomerPhone,
			Email: order.CustomerEmail,
		},
		Location: Location{
			Address:   order.Address,
			Latitude:  order.Latitude,
			Longitude: order.Longitude,
		},
		Vehicle:    order.VehicleDetails,
		Assignment: AssignmentInfo{CollectorID: order.AssignedCollectorID},
		Status:     StatusView{Order: order.OrderStatus, Payment: order.PaymentStatus},
		Pricing:    Pricing{QuotedPrice: order.QuotedPrice, ActualPrice: order.ActualPrice},
		Route:      Route{PickupTime: order.PickupTime},
		Photos:     []string(order.Photos),
		Notes:      order.Notes,
		Timeline:   make([]TimelineView, 0, len(order.Timeline)),
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	if out.Photos == nil {
		out.Photos = []string{}
	}

	if from != nil {
		if point, ok := pointOf(order); ok {
			distance := geo.DistanceKm(*from, point)
			rounded := geo.Round2(distance)
			eta := geo.ETAMinutes(distance, t.speedKmh)
			out.Location.Distance = &rounded
			out.Location.EstimatedDuration = &eta
		}
	}

	if order.Yard != nil {
		yard := order.Yard
		out.Assignment.Yard = &YardView{
			ID:        yard.ID,
			Name:      yard.Name,
			Address:   yard.Address,
			Latitude:  yard.Latitude,
			Longitude: yard.Longitude,
		}
		if point, ok := pointOf(order); ok && yard.Latitude != nil && yard.Longitude != nil {
			leg := geo.Round2(geo.DistanceKm(point, geo.Point{Latitude: *yard.Latitude, Longitude: *yard.Longitude}))
			out.Route.YardDistanceKm = &leg
		}
	}
	if order.Crew != nil {
		out.Assignment.Crew = &CrewView{ID: order.Crew.ID, Name: order.Crew.Name, MemberCount: len(order.Crew.Members)}
	}

	for _, entry := range order.Timeline {
		out.Timeline = append(out.Timeline, TimelineView{
			Status:      entry.Status,
			Notes:       entry.Notes,
			PerformedBy: entry.PerformedBy,
			Latitude:    entry.Latitude,
			Longitude:   entry.Longitude,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out
}

func pointOf(order *models.WorkOrder) (geo.Point, bool) {
	if !order.HasCoordinates() {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *order.Latitude, Longitude: *order.Longitude}, true
}
