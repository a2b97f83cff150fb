// Package dbtest opens throwaway SQLite databases carrying the work order schema.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
)

var schema = []string{
	`CREATE TABLE collectors (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  name TEXT NOT NULL,
  phone TEXT,
  average_rating REAL NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE crews (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE crew_members (
  crew_id TEXT NOT NULL,
  collector_id TEXT NOT NULL,
  joined_at DATETIME,
  PRIMARY KEY (crew_id, collector_id)
);`,
	`CREATE TABLE yards (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  latitude REAL,
  longitude REAL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE work_orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  organization_id TEXT NOT NULL,
  customer_id TEXT,
  lead_id TEXT,
  assigned_collector_id TEXT,
  crew_id TEXT,
  yard_id TEXT,
  customer_name TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  customer_email TEXT,
  address TEXT NOT NULL,
  latitude REAL,
  longitude REAL,
  vehicle_details TEXT,
  order_status TEXT NOT NULL DEFAULT 'PENDING',
  payment_status TEXT NOT NULL DEFAULT 'UNPAID',
  quoted_price NUMERIC,
  actual_price NUMERIC,
  photos TEXT,
  notes TEXT,
  pickup_time DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_work_orders_org_number ON work_orders (organization_id, order_number);`,
	`CREATE TABLE assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  collector_id TEXT,
  crew_id TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING',
  assigned_at DATETIME NOT NULL,
  start_time DATETIME,
  end_time DATETIME,
  completed_at DATETIME,
  completion_notes TEXT,
  completion_photos TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK ((collector_id IS NULL) <> (crew_id IS NULL))
);`,
	`CREATE TABLE order_timelines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  performed_by TEXT NOT NULL,
  latitude REAL,
  longitude REAL,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// Open returns a private in-memory database with the schema applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Fixtures seeds reference rows used across repository tests.
type Fixtures struct {
	DB  *gorm.DB
	T   testing.TB
	Org uuid.UUID
}

// NewFixtures binds seed helpers to db for a fresh organization.
func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{DB: db, T: t, Org: uuid.New()}
}

func (f *Fixtures) Collector(name string, rating float64) models.Collector {
	f.T.Helper()
	c := models.Collector{ID: uuid.New(), OrganizationID: f.Org, Name: name, AverageRating: rating}
	require.NoError(f.T, f.DB.Create(&c).Error)
	return c
}

func (f *Fixtures) Crew(name string, members ...uuid.UUID) models.Crew {
	f.T.Helper()
	crew := models.Crew{ID: uuid.New(), OrganizationID: f.Org, Name: name}
	require.NoError(f.T, f.DB.Create(&crew).Error)
	for _, member := range members {
		require.NoError(f.T, f.DB.Create(&models.CrewMember{CrewID: crew.ID, CollectorID: member}).Error)
	}
	return crew
}

func (f *Fixtures) Yard(name string, lat, lng float64) models.Yard {
	f.T.Helper()
	yard := models.Yard{ID: uuid.New(), OrganizationID: f.Org, Name: name, Address: name + " road", Latitude: &lat, Longitude: &lng}
	require.NoError(f.T, f.DB.Create(&yard).Error)
	return yard
}

// Order inserts order after filling required defaults.
func (f *Fixtures) Order(order models.WorkOrder) models.WorkOrder {
	f.T.Helper()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.OrganizationID == uuid.Nil {
		order.OrganizationID = f.Org
	}
	if order.OrderNumber == "" {
		order.OrderNumber = "WO-" + order.ID.String()[:8]
	}
	if order.CustomerName == "" {
		order.CustomerName = "Customer"
	}
	if order.CustomerPhone == "" {
		order.CustomerPhone = "+10000000000"
	}
	if order.Address == "" {
		order.Address = "1 Scrap Lane"
	}
	if order.OrderStatus == "" {
		order.OrderStatus = "PENDING"
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = "UNPAID"
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	require.NoError(f.T, f.DB.Create(&order).Error)
	return order
}

// Assignment inserts assignment with PENDING status unless set.
func (f *Fixtures) Assignment(a models.Assignment) models.Assignment {
	f.T.Helper()
	if a.Status == "" {
		a.Status = "PENDING"
	}
	require.NoError(f.T, f.DB.Create(&a).Error)
	return a
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// ID returns a pointer to id.
func ID(id uuid.UUID) *uuid.UUID { return &id }
