package location

import "time"

const (
	// StationaryRadiusMeters is how far a user may drift from the latest fix
	// and still count as not having moved.
	StationaryRadiusMeters = 100.0
)

// IsStationary reports whether the user has stayed within
// StationaryRadiusMeters of samples[0] for the trailing window.
//
// samples must be newest-first. Samples older than samples[0].Timestamp-window
// are ignored; a zero reference timestamp disables that filter. At least two
// samples must remain for the user to count as stationary.
func IsStationary(samples []Sample, window time.Duration) bool {
	if len(samples) < 2 {
		return false
	}

	ref := samples[0]
	var cutoff time.Time
	if !ref.Timestamp.IsZero() && window > 0 {
		cutoff = ref.Timestamp.Add(-window)
	}

	compared := 0
	for _, s := range samples[1:] {
		if !cutoff.IsZero() && s.Timestamp.Before(cutoff) {
			continue
		}
		if HaversineMeters(ref.Lat, ref.Lng, s.Lat, s.Lng) > StationaryRadiusMeters {
			return false
		}
		compared++
	}
	return compared > 0
}
