package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
	"schooltrack/internal/middleware"
	"schooltrack/internal/service"
)

const defaultNotificationLimit = 50

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	notifications *service.NotificationDispatcher
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /v1/notifications. Recipients only ever see their own.
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	notifications, err := h.notifications.ListForRecipient(c.Request.Context(), actor.UserID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	respondJSON(c, http.StatusOK, notifications)
}

// MarkRead handles POST /v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), actor.UserID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "read"})
}
