package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
	"schooltrack/internal/middleware"
)

// TripGetter resolves a trip for authorization decisions.
type TripGetter interface {
	GetTrip(ctx context.Context, tripID string) (*domain.Trip, error)
}

// requireTripActor checks that the caller may mutate the trip in the :id
// path parameter: admins act on any trip, drivers only on their own. Writes
// the error response and returns false when the request must not proceed.
func requireTripActor(c *gin.Context, trips TripGetter) bool {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return false
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return true

	case domain.RoleDriver:
		trip, err := trips.GetTrip(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return false
		}
		if trip.DriverID != actor.UserID {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "trip belongs to another driver"})
			return false
		}
		return true

	default:
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "role cannot modify trips"})
		return false
	}
}
