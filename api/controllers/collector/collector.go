package collector

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/scrapfield-backend/api/middleware"
	"github.com/angelmondragon/scrapfield-backend/api/responses"
	"github.com/angelmondragon/scrapfield-backend/api/validators"
	"github.com/angelmondragon/scrapfield-backend/internal/fieldorders"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/geo"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/pagination"
)

type statusUpdateRequest struct {
	Status           enums.OrderStatus `json:"status" validate:"required,enum"`
	Notes            *string           `json:"notes" validate:"omitempty,max=2000"`
	ActualPrice      *decimal.Decimal  `json:"actual_price"`
	CompletionPhotos []string          `json:"completion_photos" validate:"omitempty,dive,required"`
	Photos           []string          `json:"photos" validate:"omitempty,dive,required"`
	Timestamp        *time.Time        `json:"timestamp"`
	Latitude         *float64          `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64          `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// ListOrders returns the caller's visible work orders with a status summary.
func ListOrders(svc fieldorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		query, err := parseQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := parsePoint(r, "lat", "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetWorkOrders(r.Context(), actor.ID, query, location)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetOrder(svc fieldorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := parsePoint(r, "lat", "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetWorkOrder(r.Context(), actor.ID, orderID, location)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus applies a collector-initiated status change.
func UpdateStatus(svc fieldorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := parsePoint(r, "lat", "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateWorkOrderStatus(r.Context(), actor.ID, orderID, fieldorders.StatusUpdate{
			Status:           body.Status,
			Notes:            body.Notes,
			ActualPrice:      body.ActualPrice,
			CompletionPhotos: body.CompletionPhotos,
			Photos:           body.Photos,
			Timestamp:        body.Timestamp,
			Latitude:         body.Latitude,
			Longitude:        body.Longitude,
			Location:         location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, "Work order status updated", order)
	}
}

func Stats(svc fieldorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		stats, err := svc.GetCollectorStats(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func parseQuery(r *http.Request) (fieldorders.Query, error) {
	var (
		q   fieldorders.Query
		err error
	)

	for _, raw := range validators.ParseQueryList(r, "status") {
		q.Statuses = append(q.Statuses, enums.OrderStatus(strings.ToUpper(raw)))
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status := enums.PaymentStatus(strings.ToUpper(raw))
		q.PaymentStatus = &status
	}
	if q.CreatedFrom, err = validators.ParseQueryTime(r, "created_from"); err != nil {
		return q, err
	}
	if q.CreatedTo, err = validators.ParseQueryTime(r, "created_to"); err != nil {
		return q, err
	}
	if q.PickupFrom, err = validators.ParseQueryTime(r, "pickup_from"); err != nil {
		return q, err
	}
	if q.PickupTo, err = validators.ParseQueryTime(r, "pickup_to"); err != nil {
		return q, err
	}
	if q.YardID, err = validators.ParseQueryUUID(r, "yard_id"); err != nil {
		return q, err
	}
	q.Search = validators.SanitizeString(r.URL.Query().Get("search"), 200)
	if q.HasPhotos, err = validators.ParseQueryBool(r, "has_photos"); err != nil {
		return q, err
	}
	if q.MinPrice, err = validators.ParseQueryDecimal(r, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = validators.ParseQueryDecimal(r, "max_price"); err != nil {
		return q, err
	}
	if q.Near, err = parsePoint(r, "near_lat", "near_lng"); err != nil {
		return q, err
	}
	if q.RadiusKm, err = validators.ParseQueryFloat(r, "radius_km"); err != nil {
		return q, err
	}
	q.SortBy = fieldorders.SortField(strings.TrimSpace(r.URL.Query().Get("sort_by")))
	q.SortOrder = fieldorders.SortOrder(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("sort_order"))))

	if q.Page.Page, err = validators.ParseQueryInt(r, "page", 1, 1, 1_000_000); err != nil {
		return q, err
	}
	if q.Page.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
		return q, err
	}
	return q, nil
}

// parsePoint reads a coordinate pair; both halves must be present or absent together.
func parsePoint(r *http.Request, latKey, lngKey string) (*geo.Point, error) {
	lat, err := validators.ParseQueryFloat(r, latKey)
	if err != nil {
		return nil, err
	}
	lng, err := validators.ParseQueryFloat(r, lngKey)
	if err != nil {
		return nil, err
	}
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, latKey+" and "+lngKey+" must be supplied together")
	}
	return &geo.Point{Latitude: *lat, Longitude: *lng}, nil
}
