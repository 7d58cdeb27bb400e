// README: Nudge types, the user context a selection runs on, and the resulting decision.
package nudge

import (
	"errors"

	"tenkap/internal/modules/location"
	"tenkap/internal/modules/matching"
	"tenkap/internal/types"
)

// ErrInvalidInput is returned when a context cannot be evaluated at all.
var ErrInvalidInput = errors.New("invalid nudge context")

type Type string

const (
	TypeMatchProximity Type = "match_proximity"
	TypeCoffeeBreak    Type = "coffee_break"
	TypeExploreNearby  Type = "explore_nearby"
	TypeSocialPrompt   Type = "social_prompt"
	TypeQuestion       Type = "question"
)

// Tier priorities, higher is more urgent.
const (
	PriorityProximity   = 10
	PriorityMovement    = 7
	PriorityExploration = 5
	PriorityEngagement  = 3
)

type CurrentLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	PlaceName string  `json:"place_name,omitempty"`
}

func (c CurrentLocation) Point() types.Point {
	return types.Point{Lat: c.Lat, Lng: c.Lng}
}

type UserPatterns struct {
	FavoriteSpots     []matching.FavoriteSpot `json:"favorite_spots,omitempty"`
	BehavioralMetrics map[string]float64      `json:"behavioral_metrics,omitempty"`
}

// UserContext is a user's live situation. CurrentTime is ISO-8601;
// RecentLocations are newest-first. Selection never mutates it.
type UserContext struct {
	UserID          types.ID               `json:"user_id"`
	CurrentLocation CurrentLocation        `json:"current_location"`
	CurrentTime     string                 `json:"current_time"`
	DayOfWeek       int                    `json:"day_of_week"`
	RecentLocations []location.Sample      `json:"recent_locations"`
	UserPatterns    UserPatterns           `json:"user_patterns"`
	NearbyMatches   []matching.NearbyMatch `json:"nearby_matches"`
}

// Decision is the single nudge chosen for a context.
type Decision struct {
	Type           Type         `json:"nudge_type"`
	Message        string       `json:"message"`
	Subcopy        *string      `json:"subcopy,omitempty"`
	TargetLocation *types.Point `json:"target_location,omitempty"`
	Priority       int          `json:"priority"`
}
