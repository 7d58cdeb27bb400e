// README: Popular and unexplored spots derived from heat-map cells and visit history.
package spots

import (
	"time"

	"tenkap/internal/types"
)

// Spot is a named place a nudge can point at.
type Spot struct {
	Name       string      `json:"name"`
	Location   types.Point `json:"coordinates"`
	VisitCount int         `json:"visit_count,omitempty"`
}

// Cell is one heat-map row: visits to a place in a given weekday/hour slot.
// Aggregated queries leave DayOfWeek and Hour at -1.
type Cell struct {
	PlaceName  string
	Position   types.Point
	DayOfWeek  int
	Hour       int
	VisitCount int
}

// Bounds is a lat/lng rectangle used to prefilter cells before the exact
// radius check.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Visit is a check-in at a place.
type Visit struct {
	UserID    types.ID    `json:"user_id"`
	PlaceName string      `json:"place_name"`
	Position  types.Point `json:"position"`
	VisitedAt time.Time   `json:"visited_at"`
}
