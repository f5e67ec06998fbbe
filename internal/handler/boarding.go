package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/service"
)

// BoardingHandler handles HTTP requests for student boarding state.
type BoardingHandler struct {
	boarding *service.BoardingService
	trips    TripGetter
}

// NewBoardingHandler creates a new BoardingHandler.
func NewBoardingHandler(boarding *service.BoardingService, trips TripGetter) *BoardingHandler {
	return &BoardingHandler{boarding: boarding, trips: trips}
}

// BoardingRequest is the HTTP request body for boarding transitions.
type BoardingRequest struct {
	StudentID string `json:"student_id"`
}

// Board handles POST /v1/trips/:id/board
func (h *BoardingHandler) Board(c *gin.Context) {
	if !requireTripActor(c, h.trips) {
		return
	}

	var req BoardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.boarding.Board(c.Request.Context(), c.Param("id"), req.StudentID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}

// Exit handles POST /v1/trips/:id/exit
func (h *BoardingHandler) Exit(c *gin.Context) {
	if !requireTripActor(c, h.trips) {
		return
	}

	var req BoardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.boarding.Exit(c.Request.Context(), c.Param("id"), req.StudentID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}

// GetBoardingStates handles GET /v1/trips/:id/boarding
func (h *BoardingHandler) GetBoardingStates(c *gin.Context) {
	states, err := h.boarding.BoardingStates(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, states)
}
