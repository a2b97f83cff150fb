package fieldorders

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/internal/refcache"
	"github.com/angelmondragon/scrapfield-backend/internal/timeline"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/geo"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/metrics"
	"github.com/angelmondragon/scrapfield-backend/pkg/pagination"
)

const (
	DefaultRadiusKm = 50.0
	AverageSpeedKmh = 40.0
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CollectorLookup resolves the collector's stored rating.
type CollectorLookup interface {
	Collector(ctx context.Context, id uuid.UUID) (*refcache.CollectorRef, error)
}

// Service is the collector-facing read path plus direct status updates.
type Service interface {
	GetWorkOrders(ctx context.Context, collectorID uuid.UUID, query Query, location *geo.Point) (*ListResult, error)
	GetWorkOrder(ctx context.Context, collectorID, orderID uuid.UUID, location *geo.Point) (*MobileOrder, error)
	UpdateWorkOrderStatus(ctx context.Context, collectorID, orderID uuid.UUID, input StatusUpdate) (*MobileOrder, error)
	GetCollectorStats(ctx context.Context, collectorID uuid.UUID) (*Stats, error)
}

// ServiceParams wires the field query engine.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Timeline   timeline.Service
	Collectors CollectorLookup
	Metrics    *metrics.WorkOrderMetrics
	Logger     *logger.Logger
	// Location decides where today, this week and this month start.
	Location        *time.Location
	Clock           func() time.Time
	DefaultRadiusKm float64
	AverageSpeedKmh float64
}

type service struct {
	repo       Repository
	tx         txRunner
	timeline   timeline.Service
	collectors CollectorLookup
	metrics    *metrics.WorkOrderMetrics
	logg       *logger.Logger
	loc        *time.Location
	now        func() time.Time
	radiusKm   float64
	transform  transformer
}

// NewService builds the field query engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("field order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Timeline == nil {
		return nil, fmt.Errorf("timeline service required")
	}
	if params.Collectors == nil {
		return nil, fmt.Errorf("collector lookup required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	radius := params.DefaultRadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	speed := params.AverageSpeedKmh
	if speed <= 0 {
		speed = AverageSpeedKmh
	}
	return &service{
		repo:       params.Repository,
		tx:         params.Tx,
		timeline:   params.Timeline,
		collectors: params.Collectors,
		metrics:    params.Metrics,
		logg:       logg,
		loc:        loc,
		now:        now,
		radiusKm:   radius,
		transform:  transformer{speedKmh: speed},
	}, nil
}

func (s *service) GetWorkOrders(ctx context.Context, collectorID uuid.UUID, query Query, location *geo.Point) (*ListResult, error) {
	if err := query.normalize(s.radiusKm); err != nil {
		return nil, err
	}
	if location != nil {
		if err := validatePoint(*location, "location"); err != nil {
			return nil, err
		}
	}
	origin := location
	if origin == nil {
		origin = query.Near
	}
	if query.SortBy == SortByDistance && origin == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sortBy distance requires a location")
	}

	var (
		rows  []models.WorkOrder
		total int64
		err   error
	)
	if query.inMemory() {
		rows, total, err = s.listInMemory(ctx, collectorID, query, origin)
	} else {
		rows, total, err = s.listPaged(ctx, collectorID, query)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list work orders")
	}

	summary, err := s.summarize(ctx, collectorID, query.Filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarize work orders")
	}

	orders := make([]MobileOrder, 0, len(rows))
	for i := range rows {
		orders = append(orders, s.transform.order(&rows[i], location))
	}
	return &ListResult{
		Orders:     orders,
		Pagination: pagination.NewPage(query.Page, total),
		Summary:    summary,
	}, nil
}

func (s *service) listPaged(ctx context.Context, collectorID uuid.UUID, query Query) ([]models.WorkOrder, int64, error) {
	total, err := s.repo.Count(ctx, collectorID, query.Filter)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	rows, err := s.repo.List(ctx, collectorID, query.Filter, sqlSort(query), &query.Page)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// listInMemory fetches the whole filtered set, then applies the geofilter and
// distance ordering before paginating, so totals describe the geo-filtered set.
func (s *service) listInMemory(ctx context.Context, collectorID uuid.UUID, query Query, origin *geo.Point) ([]models.WorkOrder, int64, error) {
	rows, err := s.repo.List(ctx, collectorID, query.Filter, sqlSort(query), nil)
	if err != nil {
		return nil, 0, err
	}
	if query.Near != nil {
		kept := rows[:0]
		for _, row := range rows {
			point, ok := pointOf(&row)
			if ok && geo.Within(*query.Near, point, *query.RadiusKm) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	if query.SortBy == SortByDistance {
		sortByDistance(rows, *origin, query.SortOrder == SortDesc)
	}
	return pagination.Slice(rows, query.Page), int64(len(rows)), nil
}

// sqlSort resolves the database ordering; distance sorts start from created_at.
func sqlSort(query Query) SortSpec {
	column, ok := sortColumns[query.SortBy]
	if !ok {
		return SortSpec{Column: sortColumns[SortByCreatedAt], Desc: true}
	}
	return SortSpec{Column: column, Desc: query.SortOrder == SortDesc}
}

// sortByDistance orders rows by distance from origin; rows without coordinates go last.
func sortByDistance(rows []models.WorkOrder, origin geo.Point, desc bool) {
	distance := func(o *models.WorkOrder) float64 {
		point, ok := pointOf(o)
		if !ok {
			return math.Inf(1)
		}
		return geo.DistanceKm(origin, point)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := distance(&rows[i]), distance(&rows[j])
		if math.IsInf(di, 1) || math.IsInf(dj, 1) {
			return !math.IsInf(di, 1) && math.IsInf(dj, 1)
		}
		if desc {
			return di > dj
		}
		return di < dj
	})
}

func (s *service) summarize(ctx context.Context, collectorID uuid.UUID, filter Filter) (Summary, error) {
	counts, err := s.repo.CountByStatus(ctx, collectorID, filter)
	if err != nil {
		return Summary{}, err
	}
	revenue, err := s.repo.CompletedRevenue(ctx, collectorID, filter)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{ByStatus: make(map[enums.OrderStatus]int64), CompletedRevenue: revenue}
	for _, status := range enums.OrderStatuses() {
		summary.ByStatus[status] = counts[status]
		summary.Total += counts[status]
	}
	return summary, nil
}

func (s *service) GetWorkOrder(ctx context.Context, collectorID, orderID uuid.UUID, location *geo.Point) (*MobileOrder, error) {
	if location != nil {
		if err := validatePoint(*location, "location"); err != nil {
			return nil, err
		}
	}
	order, err := s.repo.FindVisible(ctx, collectorID, orderID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "work order not found", "get work order")
	}
	out := s.transform.order(order, location)
	return &out, nil
}

func (s *service) UpdateWorkOrderStatus(ctx context.Context, collectorID, orderID uuid.UUID, input StatusUpdate) (*MobileOrder, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var from enums.OrderStatus
	var order *models.WorkOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.WithTx(tx).FindVisibleForUpdate(ctx, collectorID, orderID)
		if err != nil {
			return pkgerrors.Lookup(err, "work order not found", "load work order")
		}
		from = order.OrderStatus
		if !from.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move work order from %s to %s", from, input.Status)).
				WithDetails(map[string]any{"from": from, "to": input.Status, "allowed": from.AllowedTransitions()})
		}

		order.OrderStatus = input.Status
		if input.ActualPrice != nil {
			price := input.ActualPrice.Round(2)
			order.ActualPrice = &price
		}
		if len(input.CompletionPhotos) > 0 || len(input.Photos) > 0 {
			merged := make([]string, 0, len(order.Photos)+len(input.CompletionPhotos)+len(input.Photos))
			merged = append(merged, order.Photos...)
			merged = append(merged, input.CompletionPhotos...)
			merged = append(merged, input.Photos...)
			order.Photos = merged
		}
		if err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return err
		}

		_, err = s.timeline.Record(ctx, tx, timeline.Entry{
			Order:       order,
			From:        from,
			To:          input.Status,
			Notes:       statusNotes(input),
			PerformedBy: collectorID.String(),
			At:          input.Timestamp,
			Latitude:    input.Latitude,
			Longitude:   input.Longitude,
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Classify(err, "update work order status")
	}

	s.metrics.ObserveTransition(string(from), string(input.Status), metrics.SourceCollector)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"collector_id": collectorID.String(),
		"from":         from,
		"to":           input.Status,
	})
	s.logg.Info(logCtx, "work_order.status_updated")

	return s.GetWorkOrder(ctx, collectorID, orderID, input.Location)
}

func statusNotes(input StatusUpdate) string {
	if input.Notes != nil {
		if note := strings.TrimSpace(*input.Notes); note != "" {
			return note
		}
	}
	return fmt.Sprintf("Status updated to %s by collector", input.Status)
}

func (s *service) GetCollectorStats(ctx context.Context, collectorID uuid.UUID) (*Stats, error) {
	collector, err := s.collectors.Collector(ctx, collectorID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "collector not found", "load collector")
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	week := today.AddDate(0, 0, -int(today.Weekday()))
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	stats := &Stats{AverageRating: collector.AverageRating}
	windows := []struct {
		from *time.Time
		dest *WindowStats
	}{
		{&today, &stats.Today},
		{&week, &stats.Week},
		{&month, &stats.Month},
		{nil, &stats.AllTime},
	}
	for _, w := range windows {
		window, err := s.window(ctx, collectorID, w.from)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "collector stats")
		}
		*w.dest = window
	}
	if stats.AllTime.Total > 0 {
		rate := float64(stats.AllTime.Completed) / float64(stats.AllTime.Total) * 100
		stats.CompletionRate = geo.Round2(rate)
	}
	return stats, nil
}

func (s *service) window(ctx context.Context, collectorID uuid.UUID, from *time.Time) (WindowStats, error) {
	filter := Filter{CreatedFrom: from}
	total, err := s.repo.Count(ctx, collectorID, filter)
	if err != nil {
		return WindowStats{}, err
	}
	completed := filter
	completed.Statuses = []enums.OrderStatus{enums.OrderStatusCompleted}
	done, err := s.repo.Count(ctx, collectorID, completed)
	if err != nil {
		return WindowStats{}, err
	}
	revenue := decimal.Zero
	if done > 0 {
		if revenue, err = s.repo.CompletedRevenue(ctx, collectorID, filter); err != nil {
			return WindowStats{}, err
		}
	}
	return WindowStats{Total: total, Completed: done, Revenue: revenue}, nil
}

