package workorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a work order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CountCreatedBetween counts orders of an organization created in [from, to).
func (r *repository) CountCreatedBetween(ctx context.Context, organizationID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WorkOrder{}).
		Where("organization_id = ? AND created_at >= ? AND created_at < ?", organizationID, from, to).
		Count(&count).Error
	return count, err
}

func (r *repository) Create(ctx context.Context, order *models.WorkOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

// FindByIDForUpdate row-locks the order until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	var order models.WorkOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindDetail returns the order with its assignments, ordered timeline and reference rows.
func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	var order models.WorkOrder
	err := r.db.WithContext(ctx).
		Preload("Yard").
		Preload("Crew.Members").
		Preload("AssignedCollector").
		Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("assigned_at DESC")
		}).
		Preload("Assignments.Collector").
		Preload("Assignments.Crew").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Save(ctx context.Context, order *models.WorkOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}
