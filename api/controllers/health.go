package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/scrapfield-backend/api/responses"
	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Scrapfield-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, Redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Scrapfield-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var firstErr error
		record := func(name string, p interface{ Ping(context.Context) error }) {
			if p == nil {
				checks[name] = "disabled"
				return
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = err.Error()
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			checks[name] = "ok"
		}
		record("database", dbP)
		record("redis", redisP)

		if firstErr != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, firstErr, "dependency unavailable").WithDetails(checks))
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
