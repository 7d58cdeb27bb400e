// README: Match handlers for pair scoring and nearby discovery.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tenkap/internal/modules/matching"
	"tenkap/internal/types"
)

type MatchService interface {
	Score(a, b matching.UserProfile) matching.MatchScore
	ScoreByID(ctx context.Context, a, b types.ID) (matching.MatchScore, error)
	NearbyMatches(ctx context.Context, userID types.ID, p types.Point, radiusMeters float64) ([]matching.NearbyMatch, error)
}

type MatchHandler struct {
	matching MatchService
}

func NewMatchHandler(svc MatchService) *MatchHandler {
	return &MatchHandler{matching: svc}
}

type scorePairReq struct {
	UserA matching.UserProfile `json:"user_a"`
	UserB matching.UserProfile `json:"user_b"`
}

// ScorePair scores two profiles supplied in the body.
func (h *MatchHandler) ScorePair(c *gin.Context) {
	var req scorePairReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	writeJSON(c, http.StatusOK, h.matching.Score(req.UserA, req.UserB))
}

// ScoreStored scores two stored profiles by id.
func (h *MatchHandler) ScoreStored(c *gin.Context) {
	a, b := c.Query("user_a"), c.Query("user_b")
	if !isValidID(a) || !isValidID(b) {
		writeError(c, http.StatusBadRequest, "user_a and user_b are required")
		return
	}
	m, err := h.matching.ScoreByID(c.Request.Context(), types.ID(a), types.ID(b))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}

// Nearby lists scored matches around a point, closest first.
func (h *MatchHandler) Nearby(c *gin.Context) {
	uid := c.Query("user_id")
	if !isValidID(uid) {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}
	if !callerMayActAs(c, uid) {
		writeError(c, http.StatusForbidden, "forbidden: user_id does not match authenticated user")
		return
	}
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := 0.0
	if raw := c.Query("radius_m"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 {
			writeError(c, http.StatusBadRequest, "invalid radius_m")
			return
		}
		radius = r
	}

	found, err := h.matching.NearbyMatches(c.Request.Context(), types.ID(uid), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"matches": found})
}
