package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scrapfield-backend/internal/fieldorders"
	"github.com/angelmondragon/scrapfield-backend/pkg/auth"
	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/metrics"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type statsOnly struct {
	fieldorders.Service
	calledWith uuid.UUID
}

func (s *statsOnly) GetCollectorStats(ctx context.Context, collectorID uuid.UUID) (*fieldorders.Stats, error) {
	s.calledWith = collectorID
	return &fieldorders.Stats{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "scrapfield", ExpirationMinutes: 30},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.ActorRole) (string, uuid.UUID) {
	t.Helper()
	actorID := uuid.New()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		ActorID:        actorID,
		OrganizationID: uuid.New(),
		Role:           role,
	})
	require.NoError(t, err)
	return "Bearer " + token, actorID
}

func TestTableHasUniqueRoutes(t *testing.T) {
	seen := map[string]bool{}
	for _, route := range Table(Dependencies{Config: testConfig()}) {
		key := route.Method + " " + route.Pattern
		assert.False(t, seen[key], "duplicate route %s", key)
		seen[key] = true
		assert.NotNil(t, route.Handler, key)
		if strings.HasPrefix(route.Pattern, "/api/") {
			assert.NotEmpty(t, route.Middleware, "api route %s must be authenticated", key)
		}
	}
	assert.True(t, seen["PATCH /api/v1/collector/work-orders/{orderId}/status"])
	assert.True(t, seen["POST /api/v1/work-orders/{orderId}/assignments/{assignmentId}/complete"])
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Dependencies{Config: cfg, DB: pinger{}})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"redis":"disabled"`)

	failing := NewRouter(Dependencies{Config: cfg, DB: pinger{err: errors.New("connection refused")}})
	resp = httptest.NewRecorder()
	failing.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "connection refused")
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWorkOrderMetrics(registry)
	m.IncNumbersIssued()

	router := NewRouter(Dependencies{Config: testConfig(), Gatherer: registry})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "work_order_numbers_issued_total 1")
}

func TestRoleGates(t *testing.T) {
	cfg := testConfig()
	field := &statsOnly{}
	router := NewRouter(Dependencies{Config: cfg, FieldOrders: field})

	collectorToken, collectorID := bearer(t, cfg, enums.ActorRoleCollector)
	dispatcherToken, _ := bearer(t, cfg, enums.ActorRoleDispatcher)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "anonymous", method: http.MethodGet, path: "/api/v1/collector/stats", status: http.StatusUnauthorized},
		{name: "dispatcher on field route", method: http.MethodGet, path: "/api/v1/collector/stats", token: dispatcherToken, status: http.StatusForbidden},
		{name: "collector on dispatch route", method: http.MethodPost, path: "/api/v1/work-orders", token: collectorToken, status: http.StatusForbidden},
		{name: "collector stats", method: http.MethodGet, path: "/api/v1/collector/stats", token: collectorToken, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			assert.Equal(t, tc.status, resp.Code)
		})
	}
	assert.Equal(t, collectorID, field.calledWith)
}
