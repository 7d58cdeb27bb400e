// README: Location samples, snapshots, and nearby-user results.
package location

import (
	"encoding/json"
	"time"

	"tenkap/internal/types"
)

// Sample is one reported position. Sample slices are ordered newest-first:
// index 0 is the latest fix.
type Sample struct {
	Lat       float64   `json:"latitude"`
	Lng       float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts any ISO-8601 timestamp; one without an offset is
// read as UTC. A missing, non-string or unparseable timestamp leaves
// Timestamp zero.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat       float64         `json:"latitude"`
		Lng       float64         `json:"longitude"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Sample{Lat: raw.Lat, Lng: raw.Lng}
	var ts string
	if err := json.Unmarshal(raw.Timestamp, &ts); err == nil && ts != "" {
		if parsed, err := types.ParseISOTime(ts); err == nil {
			s.Timestamp = parsed
		}
	}
	return nil
}

// Point returns the sample position.
func (s Sample) Point() types.Point {
	return types.Point{Lat: s.Lat, Lng: s.Lng}
}

// Snapshot is the durable copy of a sample kept in Postgres for replay and
// heat-map aggregation.
type Snapshot struct {
	ID         int64
	UserID     types.ID
	Position   types.Point
	RecordedAt time.Time
}

// Update is a location report from a client.
type Update struct {
	UserID    types.ID
	Position  types.Point
	Timestamp time.Time
}

// NearbyUser is a live position found by a radius query.
type NearbyUser struct {
	UserID         types.ID
	DistanceMeters float64
}
