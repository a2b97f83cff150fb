package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
)

// Assignment is one collector's or one crew's task against a work order.
// Exactly one of CollectorID and CrewID is set.
type Assignment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	CollectorID      *uuid.UUID             `gorm:"column:collector_id;type:uuid"`
	CrewID           *uuid.UUID             `gorm:"column:crew_id;type:uuid"`
	Status           enums.AssignmentStatus `gorm:"column:status;not null;default:'PENDING'"`
	AssignedAt       time.Time              `gorm:"column:assigned_at;not null"`
	StartTime        *time.Time             `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	CompletedAt      *time.Time             `gorm:"column:completed_at"`
	CompletionNotes  *string                `gorm:"column:completion_notes"`
	CompletionPhotos pq.StringArray         `gorm:"column:completion_photos;type:text[]"`
	Order            *WorkOrder             `gorm:"foreignKey:OrderID"`
	Collector        *Collector             `gorm:"foreignKey:CollectorID"`
	Crew             *Crew                  `gorm:"foreignKey:CrewID"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Assignment) TableName() string { return "assignments" }

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	return nil
}

// ActorKind returns "crew" for crew assignments and "collector" otherwise.
func (a Assignment) ActorKind() string {
	if a.CrewID != nil {
		return "crew"
	}
	return "collector"
}
