package fieldorders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/pagination"
)

// Repository reads and writes orders scoped to a single collector. An order is
// visible when it is assigned to the collector directly or to one of their crews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// List returns matching orders in sort order. A nil page returns every row.
	List(ctx context.Context, collectorID uuid.UUID, filter Filter, sort SortSpec, page *pagination.Params) ([]models.WorkOrder, error)
	Count(ctx context.Context, collectorID uuid.UUID, filter Filter) (int64, error)
	CountByStatus(ctx context.Context, collectorID uuid.UUID, filter Filter) (map[enums.OrderStatus]int64, error)
	// CompletedRevenue sums COALESCE(actual_price, quoted_price) over completed matches.
	CompletedRevenue(ctx context.Context, collectorID uuid.UUID, filter Filter) (decimal.Decimal, error)
	FindVisible(ctx context.Context, collectorID, orderID uuid.UUID) (*models.WorkOrder, error)
	FindVisibleForUpdate(ctx context.Context, collectorID, orderID uuid.UUID) (*models.WorkOrder, error)
	Save(ctx context.Context, order *models.WorkOrder) error
}

// SortSpec is a resolved SQL ordering.
type SortSpec struct {
	Column string
	Desc   bool
}

const visibleToCollector = "(work_orders.assigned_collector_id = ? OR work_orders.crew_id IN (SELECT crew_id FROM crew_members WHERE collector_id = ?))"

type repository struct {
	db *gorm.DB
}

// NewRepository builds the collector-scoped order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) scoped(ctx context.Context, collectorID uuid.UUID, filter Filter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.WorkOrder{}).
		Where(visibleToCollector, collectorID, collectorID)
	return r.applyFilter(query, filter)
}

func (r *repository) applyFilter(query *gorm.DB, f Filter) *gorm.DB {
	if len(f.Statuses) == 1 {
		query = query.Where("work_orders.order_status = ?", f.Statuses[0])
	} else if len(f.Statuses) > 1 {
		query = query.Where("work_orders.order_status IN ?", f.Statuses)
	}
	if f.PaymentStatus != nil {
		query = query.Where("work_orders.payment_status = ?", *f.PaymentStatus)
	}
	if f.CreatedFrom != nil {
		query = query.Where("work_orders.created_at >= ?", f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		query = query.Where("work_orders.created_at <= ?", f.CreatedTo.UTC())
	}
	if f.PickupFrom != nil {
		query = query.Where("work_orders.pickup_time >= ?", f.PickupFrom.UTC())
	}
	if f.PickupTo != nil {
		query = query.Where("work_orders.pickup_time <= ?", f.PickupTo.UTC())
	}
	if f.YardID != nil {
		query = query.Where("work_orders.yard_id = ?", *f.YardID)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where(
			"(LOWER(work_orders.customer_name) LIKE ? OR LOWER(work_orders.customer_phone) LIKE ? OR LOWER(work_orders.address) LIKE ? OR LOWER(work_orders.order_number) LIKE ?)",
			like, like, like, like,
		)
	}
	if f.HasPhotos != nil {
		if *f.HasPhotos {
			query = query.Where(r.hasPhotosSQL())
		} else {
			query = query.Where("NOT (" + r.hasPhotosSQL() + ")")
		}
	}
	if f.MinPrice != nil {
		query = query.Where("COALESCE(work_orders.actual_price, work_orders.quoted_price) >= ?", f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		query = query.Where("COALESCE(work_orders.actual_price, work_orders.quoted_price) <= ?", f.MaxPrice.InexactFloat64())
	}
	return query
}

// hasPhotosSQL is dialect specific because sqlite stores text[] as its literal form.
func (r *repository) hasPhotosSQL() string {
	if r.db.Dialector.Name() == "postgres" {
		return "COALESCE(array_length(work_orders.photos, 1), 0) > 0"
	}
	return "(work_orders.photos IS NOT NULL AND work_orders.photos <> '{}' AND work_orders.photos <> '')"
}

func (r *repository) List(ctx context.Context, collectorID uuid.UUID, filter Filter, sort SortSpec, page *pagination.Params) ([]models.WorkOrder, error) {
	query := withMobileRelations(r.scoped(ctx, collectorID, filter)).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sort.Column, Raw: true}, Desc: sort.Desc}).
		Order("work_orders.id ASC")
	if page != nil {
		query = query.Offset(page.Offset()).Limit(page.Normalize().Limit)
	}
	var rows []models.WorkOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Count(ctx context.Context, collectorID uuid.UUID, filter Filter) (int64, error) {
	var total int64
	err := r.scoped(ctx, collectorID, filter).Count(&total).Error
	return total, err
}

type statusCount struct {
	OrderStatus enums.OrderStatus
	Total       int64
}

func (r *repository) CountByStatus(ctx context.Context, collectorID uuid.UUID, filter Filter) (map[enums.OrderStatus]int64, error) {
	var rows []statusCount
	err := r.scoped(ctx, collectorID, filter).
		Select("work_orders.order_status AS order_status, COUNT(*) AS total").
		Group("work_orders.order_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.OrderStatus] = row.Total
	}
	return out, nil
}

type priceRow struct {
	QuotedPrice *decimal.Decimal
	ActualPrice *decimal.Decimal
}

func (r *repository) CompletedRevenue(ctx context.Context, collectorID uuid.UUID, filter Filter) (decimal.Decimal, error) {
	var rows []priceRow
	err := r.scoped(ctx, collectorID, filter).
		Where("work_orders.order_status = ?", enums.OrderStatusCompleted).
		Select("work_orders.quoted_price, work_orders.actual_price").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		order := models.WorkOrder{QuotedPrice: row.QuotedPrice, ActualPrice: row.ActualPrice}
		total = total.Add(order.Revenue())
	}
	return total, nil
}

func (r *repository) FindVisible(ctx context.Context, collectorID, orderID uuid.UUID) (*models.WorkOrder, error) {
	var order models.WorkOrder
	err := withMobileRelations(r.scoped(ctx, collectorID, Filter{})).
		Where("work_orders.id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindVisibleForUpdate row-locks the order when it is visible to the collector.
func (r *repository) FindVisibleForUpdate(ctx context.Context, collectorID, orderID uuid.UUID) (*models.WorkOrder, error) {
	var order models.WorkOrder
	err := r.scoped(ctx, collectorID, Filter{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("work_orders.id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Save(ctx context.Context, order *models.WorkOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func withMobileRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Yard").
		Preload("Crew.Members").
		Preload("Timeline", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("id ASC")
		})
}
