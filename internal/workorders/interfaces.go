package workorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
)

// Repository defines persistence operations for work orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CountCreatedBetween(ctx context.Context, organizationID uuid.UUID, from, to time.Time) (int64, error)
	Create(ctx context.Context, order *models.WorkOrder) error
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	Save(ctx context.Context, order *models.WorkOrder) error
}
