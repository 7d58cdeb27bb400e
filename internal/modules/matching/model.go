// README: Profiles, favourite spots, and match results used by compatibility scoring.
package matching

import (
	"time"

	"tenkap/internal/types"
)

// Behavioural metric keys compared by BehavioralSimilarity.
const (
	MetricAppOpensPerDay    = "app_opens_per_day"
	MetricNudgeResponseRate = "nudge_response_rate"
	MetricAvgSessionMinutes = "avg_session_minutes"
)

// DefaultAge is assumed for profiles without an age.
const DefaultAge = 25

// FavoriteSpot is a place a user visits often. TypicalHour is 0-23; nil
// means the hour is unknown.
type FavoriteSpot struct {
	PlaceName   string `json:"place_name"`
	TypicalHour *int   `json:"typical_hour,omitempty"`
}

type LocationPatterns struct {
	FavoriteSpots []FavoriteSpot `json:"favorite_spots"`
}

// UserProfile is the input to compatibility scoring. Scoring never mutates
// a profile.
type UserProfile struct {
	ID                types.ID           `json:"id"`
	LocationPatterns  LocationPatterns   `json:"location_patterns"`
	Interests         []string           `json:"interests"`
	BehavioralMetrics map[string]float64 `json:"behavioral_metrics"`
	Age               *int               `json:"age,omitempty"`
}

func (p UserProfile) age() int {
	if p.Age == nil {
		return DefaultAge
	}
	return *p.Age
}

// MatchScore is a derived, unpersisted score for an ordered pair of users.
type MatchScore struct {
	UserA     types.ID  `json:"user_a"`
	UserB     types.ID  `json:"user_b"`
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Breakdown holds the five sub-scores behind a MatchScore.
type Breakdown struct {
	LocationOverlap      float64 `json:"location_overlap"`
	TemporalOverlap      float64 `json:"temporal_overlap"`
	InterestSimilarity   float64 `json:"interest_similarity"`
	BehavioralSimilarity float64 `json:"behavioral_similarity"`
	DemographicFit       float64 `json:"demographic_fit"`
}

// NearbyMatch is a scored user close to the requester.
type NearbyMatch struct {
	UserID         types.ID `json:"user_id"`
	DistanceMeters float64  `json:"distance_meters"`
	MatchScore     float64  `json:"match_score"`
}

const (
	// profileCacheTTL bounds how long a profile read from Postgres is served
	// from Redis.
	profileCacheTTL = 10 * time.Minute
	// defaultFanOut caps concurrent scoring goroutines when none is configured.
	defaultFanOut = 8
)
