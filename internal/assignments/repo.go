package assignments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
)

// Repository defines persistence operations for assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Assignment, error)
	ListByCollector(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]models.Assignment, error)
	ListByCrew(ctx context.Context, crewID uuid.UUID, status *enums.AssignmentStatus) ([]models.Assignment, error)
	Save(ctx context.Context, assignment *models.Assignment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an assignment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindDetail returns the assignment with its order (and the order's yard), collector and crew.
func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByOrder re-reads every assignment of an order.
func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("assigned_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByCollector(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]models.Assignment, error) {
	return r.list(ctx, "collector_id = ?", collectorID, status)
}

func (r *repository) ListByCrew(ctx context.Context, crewID uuid.UUID, status *enums.AssignmentStatus) ([]models.Assignment, error) {
	return r.list(ctx, "crew_id = ?", crewID, status)
}

func (r *repository) list(ctx context.Context, predicate string, id uuid.UUID, status *enums.AssignmentStatus) ([]models.Assignment, error) {
	query := r.withRelations(r.db.WithContext(ctx)).Where(predicate, id)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Assignment
	if err := query.Order("assigned_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Order").
		Preload("Order.Yard").
		Preload("Collector").
		Preload("Crew.Members")
}

func (r *repository) Save(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(assignment).Error
}
