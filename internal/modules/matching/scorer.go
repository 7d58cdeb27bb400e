// README: Compatibility scorer; five weighted sub-scores reduced to one value in [0,1].
package matching

import (
	"math"
	"sort"
)

const (
	// neutralScore is returned by a signal when either side has no data.
	neutralScore = 0.5
	// noSharedPlacesScore penalises users who both have spots but share none.
	noSharedPlacesScore = 0.3
	// maxHourDiff is the largest circular difference on a 24h clock.
	maxHourDiff = 12.0
	// ageSpan is the age gap at which demographic fit reaches zero.
	ageSpan = 20.0
)

// Signal names the five compatibility components.
type Signal string

const (
	SignalLocationOverlap      Signal = "location_overlap"
	SignalTemporalOverlap      Signal = "temporal_overlap"
	SignalInterestSimilarity   Signal = "interest_similarity"
	SignalBehavioralSimilarity Signal = "behavioral_similarity"
	SignalDemographicFit       Signal = "demographic_fit"
)

// defaultWeights sum to 1.0.
var defaultWeights = map[Signal]float64{
	SignalLocationOverlap:      0.25,
	SignalTemporalOverlap:      0.20,
	SignalInterestSimilarity:   0.30,
	SignalBehavioralSimilarity: 0.15,
	SignalDemographicFit:       0.10,
}

var behavioralMetrics = []string{
	MetricAppOpensPerDay,
	MetricNudgeResponseRate,
	MetricAvgSessionMinutes,
}

// Scorer computes compatibility scores. It holds only immutable data and is
// safe for concurrent use.
type Scorer struct {
	weights map[Signal]float64
}

func NewScorer() *Scorer {
	w := make(map[Signal]float64, len(defaultWeights))
	for k, v := range defaultWeights {
		w[k] = v
	}
	return &Scorer{weights: w}
}

// Weight returns the weight applied to a signal.
func (s *Scorer) Weight(sig Signal) float64 {
	return s.weights[sig]
}

// Breakdown computes the five sub-scores for a pair.
func (s *Scorer) Breakdown(a, b UserProfile) Breakdown {
	return Breakdown{
		LocationOverlap:      LocationOverlap(a, b),
		TemporalOverlap:      TemporalOverlap(a, b),
		InterestSimilarity:   InterestSimilarity(a, b),
		BehavioralSimilarity: BehavioralSimilarity(a, b),
		DemographicFit:       DemographicFit(a, b),
	}
}

// Combine reduces a breakdown to the weighted sum, rounded to 3 decimals.
func (s *Scorer) Combine(bd Breakdown) float64 {
	total := s.weights[SignalLocationOverlap]*bd.LocationOverlap +
		s.weights[SignalTemporalOverlap]*bd.TemporalOverlap +
		s.weights[SignalInterestSimilarity]*bd.InterestSimilarity +
		s.weights[SignalBehavioralSimilarity]*bd.BehavioralSimilarity +
		s.weights[SignalDemographicFit]*bd.DemographicFit
	return round3(clamp01(total))
}

// Score returns the compatibility of a and b in [0,1], rounded to 3 decimals.
func (s *Scorer) Score(a, b UserProfile) float64 {
	return s.Combine(s.Breakdown(a, b))
}

// Match scores a pair and keeps the breakdown alongside the result.
func (s *Scorer) Match(a, b UserProfile) MatchScore {
	bd := s.Breakdown(a, b)
	return MatchScore{UserA: a.ID, UserB: b.ID, Score: s.Combine(bd), Breakdown: bd}
}

// LocationOverlap is the Jaccard similarity of favourite place names.
func LocationOverlap(a, b UserProfile) float64 {
	spotsA, spotsB := a.LocationPatterns.FavoriteSpots, b.LocationPatterns.FavoriteSpots
	if len(spotsA) == 0 || len(spotsB) == 0 {
		return neutralScore
	}
	return jaccard(placeNames(spotsA), placeNames(spotsB))
}

// TemporalOverlap compares typical visiting hours at shared places using the
// circular hour difference.
// Hour 0 is midnight and is compared like any other hour; only a nil
// TypicalHour means the hour is unknown.
func TemporalOverlap(a, b UserProfile) float64 {
	spotsA, spotsB := a.LocationPatterns.FavoriteSpots, b.LocationPatterns.FavoriteSpots
	if len(spotsA) == 0 || len(spotsB) == 0 {
		return neutralScore
	}

	namesA, namesB := placeNames(spotsA), placeNames(spotsB)
	shared := make([]string, 0, len(namesA))
	for name := range namesA {
		if _, ok := namesB[name]; ok {
			shared = append(shared, name)
		}
	}
	if len(shared) == 0 {
		return noSharedPlacesScore
	}
	sort.Strings(shared)

	var sum float64
	var n int
	for _, place := range shared {
		h1, h2 := firstHour(spotsA, place), firstHour(spotsB, place)
		if h1 == nil || h2 == nil {
			continue
		}
		sum += circularHourDiff(*h1, *h2)
		n++
	}
	if n == 0 {
		return neutralScore
	}

	avg := sum / float64(n)
	return clamp01(1 - avg/maxHourDiff)
}

// InterestSimilarity is the Jaccard similarity of interest tags.
func InterestSimilarity(a, b UserProfile) float64 {
	setA, setB := toSet(a.Interests), toSet(b.Interests)
	if len(setA) == 0 || len(setB) == 0 {
		return neutralScore
	}
	return jaccard(setA, setB)
}

// BehavioralSimilarity averages the inverse relative difference of the three
// tracked metrics. A metric missing from a non-empty map counts as 0.
func BehavioralSimilarity(a, b UserProfile) float64 {
	if len(a.BehavioralMetrics) == 0 || len(b.BehavioralMetrics) == 0 {
		return neutralScore
	}

	var sum float64
	for _, m := range behavioralMetrics {
		v1, v2 := a.BehavioralMetrics[m], b.BehavioralMetrics[m]
		if v1 == 0 && v2 == 0 {
			sum += 1.0
			continue
		}
		denom := math.Max(math.Max(v1, v2), 1)
		sum += clamp01(1 - math.Abs(v1-v2)/denom)
	}
	return sum / float64(len(behavioralMetrics))
}

// DemographicFit decays linearly with the age gap, reaching 0 at 20 years.
func DemographicFit(a, b UserProfile) float64 {
	diff := math.Abs(float64(a.age() - b.age()))
	return math.Max(0, 1-diff/ageSpan)
}

func placeNames(spots []FavoriteSpot) map[string]struct{} {
	out := make(map[string]struct{}, len(spots))
	for _, sp := range spots {
		out[sp.PlaceName] = struct{}{}
	}
	return out
}

// firstHour returns the hour of the first spot named place.
func firstHour(spots []FavoriteSpot, place string) *int {
	for _, sp := range spots {
		if sp.PlaceName == place {
			return sp.TypicalHour
		}
	}
	return nil
}

func circularHourDiff(h1, h2 int) float64 {
	d := math.Abs(float64(h1 - h2))
	return math.Min(d, 24-d)
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
