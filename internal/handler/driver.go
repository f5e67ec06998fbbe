package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
	"schooltrack/internal/middleware"
	"schooltrack/internal/service"
)

// PositionReporter accepts device position fixes.
type PositionReporter interface {
	Report(ctx context.Context, driverID string, pt domain.GeoPoint, at time.Time) error
}

// DriverHandler handles HTTP requests from driver devices.
type DriverHandler struct {
	positions PositionReporter
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(positions PositionReporter) *DriverHandler {
	return &DriverHandler{positions: positions}
}

// ReportPositionRequest is the HTTP request body for a device position fix.
type ReportPositionRequest struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	ReportedAt *time.Time `json:"reported_at,omitempty"`
}

// ReportPosition handles POST /v1/drivers/:id/position. Drivers may only
// report their own position.
func (h *DriverHandler) ReportPosition(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	driverID := c.Param("id")
	if actor.Role == domain.RoleDriver && actor.UserID != driverID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot report another driver's position"})
		return
	}

	var req ReportPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	pt := domain.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude}
	if !pt.Valid() {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	at := time.Now()
	if req.ReportedAt != nil {
		at = *req.ReportedAt
	}

	if err := h.positions.Report(c.Request.Context(), driverID, pt, at); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, gin.H{"status": "accepted"})
}
