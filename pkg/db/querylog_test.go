package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
)

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	ql := newQueryLogger(logg, 100*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), stmt, nil)
	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), `"db.slow_query"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), `"db.query_failed"`)
}

func TestResolveDriver(t *testing.T) {
	assert.Equal(t, DriverPostgres, resolveDriver(config.DBConfig{Driver: "postgres"}, config.FeatureFlagsConfig{}))
	assert.Equal(t, DriverSQLite, resolveDriver(config.DBConfig{Driver: "SQLite"}, config.FeatureFlagsConfig{}))
	assert.Equal(t, DriverSQLite, resolveDriver(config.DBConfig{}, config.FeatureFlagsConfig{UseSQLite: true}))
}
