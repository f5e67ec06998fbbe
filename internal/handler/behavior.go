package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
	"schooltrack/internal/service"
)

// BehaviorHandler handles HTTP requests for behavior and emergency reports.
type BehaviorHandler struct {
	behavior *service.BehaviorService
	trips    TripGetter
}

// NewBehaviorHandler creates a new BehaviorHandler.
func NewBehaviorHandler(behavior *service.BehaviorService, trips TripGetter) *BehaviorHandler {
	return &BehaviorHandler{behavior: behavior, trips: trips}
}

// BehaviorReportRequest is the HTTP request body for filing a behavior report.
type BehaviorReportRequest struct {
	StudentID   string `json:"student_id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// EmergencyRequest is the HTTP request body for reporting an emergency.
type EmergencyRequest struct {
	Detail string `json:"detail,omitempty"`
}

// Report handles POST /v1/trips/:id/behavior
func (h *BehaviorHandler) Report(c *gin.Context) {
	if !requireTripActor(c, h.trips) {
		return
	}

	var req BehaviorReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	report, err := h.behavior.Report(c.Request.Context(), c.Param("id"), req.StudentID, domain.BehaviorType(req.Type), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, report)
}

// ReportsForStudent handles GET /v1/students/:id/behavior
func (h *BehaviorHandler) ReportsForStudent(c *gin.Context) {
	reports, err := h.behavior.ReportsForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []*domain.BehaviorReport{}
	}
	respondJSON(c, http.StatusOK, reports)
}

// Emergency handles POST /v1/trips/:id/emergency
func (h *BehaviorHandler) Emergency(c *gin.Context) {
	if !requireTripActor(c, h.trips) {
		return
	}

	var req EmergencyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	if err := h.behavior.ReportEmergency(c.Request.Context(), c.Param("id"), req.Detail); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, gin.H{"status": "reported"})
}
