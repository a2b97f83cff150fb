package models

import (
	"time"

	"github.com/google/uuid"
)

// Collector is an individual field worker.
type Collector struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Phone          *string   `gorm:"column:phone"`
	AverageRating  float64   `gorm:"column:average_rating;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Collector) TableName() string { return "collectors" }

// Crew is a named group of collectors.
type Crew struct {
	ID             uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID    `gorm:"column:organization_id;type:uuid;not null"`
	Name           string       `gorm:"column:name;not null"`
	Members        []CrewMember `gorm:"foreignKey:CrewID"`
	CreatedAt      time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Crew) TableName() string { return "crews" }

// CrewMember links a collector to a crew.
type CrewMember struct {
	CrewID      uuid.UUID `gorm:"column:crew_id;type:uuid;primaryKey"`
	CollectorID uuid.UUID `gorm:"column:collector_id;type:uuid;primaryKey"`
	JoinedAt    time.Time `gorm:"column:joined_at;autoCreateTime"`
}

func (CrewMember) TableName() string { return "crew_members" }

// Yard is the depot a pickup is delivered to.
type Yard struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Address        string    `gorm:"column:address;not null;default:''"`
	Latitude       *float64  `gorm:"column:latitude"`
	Longitude      *float64  `gorm:"column:longitude"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Yard) TableName() string { return "yards" }
