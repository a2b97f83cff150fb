package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID        uuid.UUID
	OrganizationID uuid.UUID
	Role           enums.ActorRole
	// CrewIDs lists the crews a collector may act for on assignments.
	CrewIDs []uuid.UUID
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	ActorID        uuid.UUID       `json:"actor_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Role           enums.ActorRole `json:"role"`
	CrewIDs        []uuid.UUID     `json:"crew_ids,omitempty"`
	jwt.RegisteredClaims
}

// HasCrew reports whether the token lists crewID.
func (c *AccessTokenClaims) HasCrew(crewID uuid.UUID) bool {
	for _, id := range c.CrewIDs {
		if id == crewID {
			return true
		}
	}
	return false
}
