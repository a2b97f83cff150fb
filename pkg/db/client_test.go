package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/dbtest"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
)

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := dbtest.Open(t)
	client := Wrap(conn)
	fx := dbtest.NewFixtures(t, conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models.Yard{ID: uuid.New(), OrganizationID: fx.Org, Name: "north"}).Error
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Yard{ID: uuid.New(), OrganizationID: fx.Org, Name: "south"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.Yard{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPing(t *testing.T) {
	client := Wrap(dbtest.Open(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	fx.Order(models.WorkOrder{OrderNumber: "WO-01012026-1"})

	err := conn.Create(&models.WorkOrder{
		OrganizationID: fx.Org,
		OrderNumber:    "WO-01012026-1",
		CustomerName:   "dup",
		CustomerPhone:  "1",
		Address:        "x",
		OrderStatus:    "PENDING",
		PaymentStatus:  "UNPAID",
	}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "work_orders.order_number"))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "work_orders_order_number_key"}
	assert.True(t, IsUniqueViolation(pgErr, "work_orders_order_number_key"))
	assert.False(t, IsUniqueViolation(pgErr, "assignments_pkey"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, config.FeatureFlagsConfig{}, nil)
	require.Error(t, err)
}
