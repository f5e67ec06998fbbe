package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
	"schooltrack/internal/middleware"
	"schooltrack/internal/service"
	"schooltrack/internal/stream"
)

// StreamHandler serves live change subscriptions over Server-Sent Events.
type StreamHandler struct {
	streams *stream.Layer
	trips   *service.TripService
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(streams *stream.Layer, trips *service.TripService) *StreamHandler {
	return &StreamHandler{streams: streams, trips: trips}
}

// Subscribe handles GET /v1/stream?scope=<kind>&id=<value>. The connection
// first receives a snapshot of the scoped state, then incremental changes
// until the client disconnects.
func (h *StreamHandler) Subscribe(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	filter := stream.Filter{
		Kind:  stream.FilterKind(c.Query("scope")),
		Value: c.Query("id"),
	}
	if !filter.Valid() {
		respondError(c, stream.ErrInvalidFilter)
		return
	}

	if !h.authorized(c, actor, filter) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "scope not permitted for this user"})
		return
	}

	sub, err := h.streams.Subscribe(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-sub.C:
			if !open {
				return false
			}
			c.SSEvent("change", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// authorized decides whether the actor may observe the filter's scope.
// Admins observe anything; drivers their own scope and their own trips;
// parents their own notifications and any single trip.
func (h *StreamHandler) authorized(c *gin.Context, actor domain.Actor, f stream.Filter) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}

	switch f.Kind {
	case stream.FilterRecipient:
		return f.Value == actor.UserID

	case stream.FilterDriver:
		return actor.Role == domain.RoleDriver && f.Value == actor.UserID

	case stream.FilterTrip:
		if actor.Role == domain.RoleParent {
			return true
		}
		trip, err := h.trips.GetTrip(c.Request.Context(), f.Value)
		if err != nil {
			return false
		}
		return trip.DriverID == actor.UserID

	default:
		return false
	}
}
