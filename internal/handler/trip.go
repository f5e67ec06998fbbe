package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
	"schooltrack/internal/middleware"
	"schooltrack/internal/service"
)

// TripHandler handles HTTP requests for the trip lifecycle.
type TripHandler struct {
	trips *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(trips *service.TripService) *TripHandler {
	return &TripHandler{trips: trips}
}

// StartTripRequest is the HTTP request body for starting a trip. DriverID is
// only honored for admin callers; drivers always start their own trip.
type StartTripRequest struct {
	DriverID string `json:"driver_id,omitempty"`
}

// CancelTripRequest is the HTTP request body for cancelling a trip.
type CancelTripRequest struct {
	Reason string `json:"reason,omitempty"`
}

// StartTrip handles POST /v1/trips
func (h *TripHandler) StartTrip(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	var req StartTripRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	driverID := actor.UserID
	if actor.Role == domain.RoleAdmin && req.DriverID != "" {
		driverID = req.DriverID
	}

	trip, err := h.trips.StartTrip(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, trip)
}

// EndTrip handles POST /v1/trips/:id/end
func (h *TripHandler) EndTrip(c *gin.Context) {
	if !requireTripActor(c, h.trips) {
		return
	}

	trip, err := h.trips.EndTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	if !requireTripActor(c, h.trips) {
		return
	}

	var req CancelTripRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	trip, err := h.trips.CancelTrip(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.trips.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}

// GetActiveTrips handles GET /v1/trips. Admins see their active fleet;
// drivers see their own active trip.
func (h *TripHandler) GetActiveTrips(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	switch actor.Role {
	case domain.RoleAdmin:
		trips, err := h.trips.ActiveTripsForAdmin(c.Request.Context(), actor.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		if trips == nil {
			trips = []*domain.Trip{}
		}
		respondJSON(c, http.StatusOK, trips)

	case domain.RoleDriver:
		trip, err := h.trips.ActiveTripForDriver(c.Request.Context(), actor.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		if trip == nil {
			respondJSON(c, http.StatusOK, []*domain.Trip{})
			return
		}
		respondJSON(c, http.StatusOK, []*domain.Trip{trip})

	default:
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "role cannot list trips"})
	}
}
