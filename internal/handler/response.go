package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/repository"
	"schooltrack/internal/service"
	"schooltrack/internal/stream"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrTripNotFound),
		errors.Is(err, service.ErrStudentNotOnTrip):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidStudentID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidBehaviorType),
		errors.Is(err, stream.ErrInvalidFilter):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrTripAlreadyActive),
		errors.Is(err, service.ErrTripNotActive):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNoRouteAssigned),
		errors.Is(err, service.ErrNotRecipient):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
