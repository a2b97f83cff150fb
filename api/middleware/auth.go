package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/scrapfield-backend/api/responses"
	pkgAuth "github.com/angelmondragon/scrapfield-backend/pkg/auth"
	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				message := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					message = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, message))
				return
			}

			actor := Actor{
				ID:             claims.ActorID,
				OrganizationID: claims.OrganizationID,
				Role:           claims.Role,
				CrewIDs:        claims.CrewIDs,
			}
			ctx := WithActor(r.Context(), actor)

			if logg != nil {
				ctx = logg.WithActor(ctx, actor.ID.String(), string(actor.Role), actor.OrganizationID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
