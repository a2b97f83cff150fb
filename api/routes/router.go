package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/scrapfield-backend/api/controllers"
	assignmentcontrollers "github.com/angelmondragon/scrapfield-backend/api/controllers/assignments"
	collectorcontrollers "github.com/angelmondragon/scrapfield-backend/api/controllers/collector"
	workordercontrollers "github.com/angelmondragon/scrapfield-backend/api/controllers/workorders"
	"github.com/angelmondragon/scrapfield-backend/api/middleware"
	"github.com/angelmondragon/scrapfield-backend/internal/assignments"
	"github.com/angelmondragon/scrapfield-backend/internal/fieldorders"
	"github.com/angelmondragon/scrapfield-backend/internal/workorders"
	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/db"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/redis"
)

// Route is one entry of the registration table.
type Route struct {
	Method     string
	Pattern    string
	Handler    http.HandlerFunc
	Middleware []func(http.Handler) http.Handler
}

// Dependencies carries everything the route table binds to.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	Gatherer    prometheus.Gatherer
	WorkOrders  workorders.Service
	Assignments assignments.Service
	FieldOrders fieldorders.Service
}

// Table builds the full list of routes served by the API.
func Table(deps Dependencies) []Route {
	cfg, logg := deps.Config, deps.Logger

	authenticated := middleware.Auth(cfg.JWT, logg)
	dispatch := []func(http.Handler) http.Handler{
		authenticated,
		middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleDispatcher),
	}
	field := []func(http.Handler) http.Handler{
		authenticated,
		middleware.RequireRole(logg, enums.ActorRoleCollector),
	}
	anyActor := []func(http.Handler) http.Handler{
		authenticated,
		middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleDispatcher, enums.ActorRoleCollector),
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return []Route{
		{Method: http.MethodGet, Pattern: "/health/live", Handler: controllers.HealthLive(cfg)},
		{Method: http.MethodGet, Pattern: "/health/ready", Handler: controllers.HealthReady(cfg, logg, deps.DB, deps.Redis)},
		{Method: http.MethodGet, Pattern: "/metrics", Handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP},

		{Method: http.MethodPost, Pattern: "/api/v1/work-orders", Handler: workordercontrollers.Create(deps.WorkOrders, logg), Middleware: dispatch},
		{Method: http.MethodGet, Pattern: "/api/v1/work-orders/{orderId}", Handler: workordercontrollers.Get(deps.WorkOrders, logg), Middleware: dispatch},
		{Method: http.MethodPatch, Pattern: "/api/v1/work-orders/{orderId}", Handler: workordercontrollers.Update(deps.WorkOrders, logg), Middleware: dispatch},
		{Method: http.MethodPost, Pattern: "/api/v1/work-orders/{orderId}/assign", Handler: workordercontrollers.Assign(deps.WorkOrders, logg), Middleware: dispatch},
		{Method: http.MethodGet, Pattern: "/api/v1/work-orders/{orderId}/timeline", Handler: workordercontrollers.Timeline(deps.WorkOrders, logg), Middleware: dispatch},

		{Method: http.MethodPost, Pattern: "/api/v1/work-orders/{orderId}/assignments/{assignmentId}/start", Handler: assignmentcontrollers.Start(deps.Assignments, logg), Middleware: anyActor},
		{Method: http.MethodPost, Pattern: "/api/v1/work-orders/{orderId}/assignments/{assignmentId}/complete", Handler: assignmentcontrollers.Complete(deps.Assignments, logg), Middleware: anyActor},
		{Method: http.MethodGet, Pattern: "/api/v1/assignments/{assignmentId}", Handler: assignmentcontrollers.Get(deps.Assignments, logg), Middleware: dispatch},
		{Method: http.MethodGet, Pattern: "/api/v1/collectors/{collectorId}/assignments", Handler: assignmentcontrollers.ListForCollector(deps.Assignments, logg), Middleware: anyActor},
		{Method: http.MethodGet, Pattern: "/api/v1/crews/{crewId}/assignments", Handler: assignmentcontrollers.ListForCrew(deps.Assignments, logg), Middleware: anyActor},

		{Method: http.MethodGet, Pattern: "/api/v1/collector/work-orders", Handler: collectorcontrollers.ListOrders(deps.FieldOrders, logg), Middleware: field},
		{Method: http.MethodGet, Pattern: "/api/v1/collector/work-orders/{orderId}", Handler: collectorcontrollers.GetOrder(deps.FieldOrders, logg), Middleware: field},
		{Method: http.MethodPatch, Pattern: "/api/v1/collector/work-orders/{orderId}/status", Handler: collectorcontrollers.UpdateStatus(deps.FieldOrders, logg), Middleware: field},
		{Method: http.MethodGet, Pattern: "/api/v1/collector/stats", Handler: collectorcontrollers.Stats(deps.FieldOrders, logg), Middleware: field},
	}
}

// NewRouter mounts the route table on a chi router behind the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(deps.Config.App.CORSOrigins),
	)

	for _, route := range Table(deps) {
		mw := append([]func(http.Handler) http.Handler{middleware.PathFields(logg)}, route.Middleware...)
		r.With(mw...).Method(route.Method, route.Pattern, route.Handler)
	}
	return r
}
