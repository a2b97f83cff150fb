package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// Actor is the authenticated caller extracted from the access token.
type Actor struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Role           enums.ActorRole
	CrewIDs        []uuid.UUID
}

// HasCrew reports whether the actor may act for crewID.
func (a Actor) HasCrew(crewID uuid.UUID) bool {
	for _, id := range a.CrewIDs {
		if id == crewID {
			return true
		}
	}
	return false
}

// ActorFromContext returns the actor seeded by Auth.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(Actor)
	return actor, ok
}

// WithActor injects the actor into the context for downstream handlers.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
