// README: Location handlers for live position updates and check-ins.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tenkap/internal/modules/location"
	"tenkap/internal/modules/spots"
	"tenkap/internal/types"
)

type LocationService interface {
	Update(ctx context.Context, u location.Update) error
}

type VisitRecorder interface {
	RecordVisit(ctx context.Context, v spots.Visit) error
}

type LocationHandler struct {
	location LocationService
	visits   VisitRecorder
}

func NewLocationHandler(svc LocationService, visits VisitRecorder) *LocationHandler {
	return &LocationHandler{location: svc, visits: visits}
}

type updateLocationReq struct {
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type visitReq struct {
	PlaceName string    `json:"place_name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	VisitedAt time.Time `json:"visited_at"`
}

// Update records the caller's current position.
func (h *LocationHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}
	// Only the authenticated user may update their own location.
	if !callerMayActAs(c, id) {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return
	}
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	err := h.location.Update(c.Request.Context(), location.Update{
		UserID:    types.ID(id),
		Position:  types.Point{Lat: *req.Lat, Lng: *req.Lng},
		Timestamp: req.Timestamp,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": "ok"})
}

// RecordVisit stores a check-in at a named place.
func (h *LocationHandler) RecordVisit(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}
	if !callerMayActAs(c, id) {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return
	}
	var req visitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.visits.RecordVisit(c.Request.Context(), spots.Visit{
		UserID:    types.ID(id),
		PlaceName: req.PlaceName,
		Position:  types.Point{Lat: req.Lat, Lng: req.Lng},
		VisitedAt: req.VisitedAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"status": "ok"})
}
