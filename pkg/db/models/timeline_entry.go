package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
)

// PerformedBySystem marks timeline entries written without a human actor.
const PerformedBySystem = "system"

// TimelineEntry is an append-only record of a status an order entered.
type TimelineEntry struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Status      enums.OrderStatus `gorm:"column:status;not null"`
	Notes       string            `gorm:"column:notes;not null;default:''"`
	PerformedBy string            `gorm:"column:performed_by;not null"`
	Latitude    *float64          `gorm:"column:latitude"`
	Longitude   *float64          `gorm:"column:longitude"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (TimelineEntry) TableName() string { return "order_timelines" }

// BeforeCreate assigns a time-ordered id so rows sharing created_at still list in insertion order.
func (e *TimelineEntry) BeforeCreate(*gorm.DB) error {
	if e.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}
