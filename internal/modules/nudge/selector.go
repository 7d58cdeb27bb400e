// README: Tiered nudge selection; the first tier whose guard holds decides, lower tiers never run.
package nudge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"tenkap/internal/metrics"
	"tenkap/internal/modules/location"
	"tenkap/internal/modules/spots"
	"tenkap/internal/types"
)

const (
	proximityMaxMeters = 200.0
	proximityMinScore  = 0.7
	stationaryWindow   = 30 * time.Minute
)

// SpotFinder looks up places to send a user to.
type SpotFinder interface {
	FindNearbyPopularSpot(ctx context.Context, p types.Point, dayOfWeek, hour int) (*spots.Spot, error)
	FindUnexploredNearbySpots(ctx context.Context, userID types.ID, p types.Point) ([]spots.Spot, error)
}

// QuestionGate enforces the daily question budget.
type QuestionGate interface {
	ShouldAskQuestion(ctx context.Context, userID types.ID) (bool, error)
}

// Picker returns an index in [0, n).
type Picker func(n int) int

type Option func(*Selector)

// WithPicker replaces the random template choice.
func WithPicker(p Picker) Option {
	return func(s *Selector) {
		if p != nil {
			s.pick = p
		}
	}
}

// Selector picks at most one nudge per context. It is safe for concurrent use
// as long as its collaborators are.
type Selector struct {
	spots     SpotFinder
	questions QuestionGate
	logger    *zap.Logger
	pick      Picker
	templates map[Type][]Template
}

func NewSelector(spotFinder SpotFinder, questions QuestionGate, logger *zap.Logger, opts ...Option) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Selector{
		spots:     spotFinder,
		questions: questions,
		logger:    logger,
		pick:      rand.IntN,
		templates: defaultTemplates,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select evaluates the tiers in priority order. A nil decision with a nil
// error means no nudge. The only error is a malformed CurrentTime, which
// wraps ErrInvalidInput; collaborator failures count as "no result".
func (s *Selector) Select(ctx context.Context, uc UserContext) (*Decision, error) {
	now, err := parseContextTime(uc.CurrentTime)
	if err != nil {
		return nil, err
	}

	tiers := []func(context.Context, UserContext, time.Time) *Decision{
		s.proximity,
		s.movement,
		s.exploration,
		s.engagement,
	}
	for _, tier := range tiers {
		if d := tier(ctx, uc, now); d != nil {
			metrics.NudgeDecisions.WithLabelValues(string(d.Type)).Inc()
			return d, nil
		}
	}
	metrics.NudgeDecisions.WithLabelValues(metrics.DecisionNone).Inc()
	return nil, nil
}

func (s *Selector) proximity(_ context.Context, uc UserContext, _ time.Time) *Decision {
	if len(uc.NearbyMatches) == 0 {
		return nil
	}
	closest := uc.NearbyMatches[0]
	for _, m := range uc.NearbyMatches[1:] {
		if m.DistanceMeters < closest.DistanceMeters {
			closest = m
		}
	}
	if closest.DistanceMeters >= proximityMaxMeters || closest.MatchScore <= proximityMinScore {
		return nil
	}
	return s.decide(TypeMatchProximity, PriorityProximity, nil, proximityVars(closest.DistanceMeters, len(uc.NearbyMatches)))
}

func (s *Selector) movement(ctx context.Context, uc UserContext, now time.Time) *Decision {
	if s.spots == nil || !location.IsStationary(uc.RecentLocations, stationaryWindow) {
		return nil
	}
	spot, err := s.spots.FindNearbyPopularSpot(ctx, uc.CurrentLocation.Point(), uc.DayOfWeek, now.Hour())
	if err != nil {
		s.collaboratorFailed("popular_spot", uc.UserID, err)
		return nil
	}
	if spot == nil {
		return nil
	}
	target := spot.Location
	return s.decide(TypeCoffeeBreak, PriorityMovement, &target, placeName(spot.Name))
}

func (s *Selector) exploration(ctx context.Context, uc UserContext, _ time.Time) *Decision {
	if s.spots == nil {
		return nil
	}
	found, err := s.spots.FindUnexploredNearbySpots(ctx, uc.UserID, uc.CurrentLocation.Point())
	if err != nil {
		s.collaboratorFailed("unexplored_spots", uc.UserID, err)
		return nil
	}
	if len(found) == 0 {
		return nil
	}
	target := found[0].Location
	return s.decide(TypeExploreNearby, PriorityExploration, &target, placeName(found[0].Name))
}

func (s *Selector) engagement(ctx context.Context, uc UserContext, _ time.Time) *Decision {
	if s.questions == nil {
		return nil
	}
	ok, err := s.questions.ShouldAskQuestion(ctx, uc.UserID)
	if err != nil {
		s.collaboratorFailed("question_gate", uc.UserID, err)
		return nil
	}
	if !ok {
		return nil
	}
	where := uc.CurrentLocation.PlaceName
	if where == "" {
		where = fallbackLocation
	}
	return s.decide(TypeQuestion, PriorityEngagement, nil, vars{"location": where})
}

func (s *Selector) decide(t Type, priority int, target *types.Point, v vars) *Decision {
	tpl := s.template(t)
	sub := v.format(tpl.Subcopy)
	return &Decision{
		Type:           t,
		Message:        tpl.Message,
		Subcopy:        &sub,
		TargetLocation: target,
		Priority:       priority,
	}
}

// template picks one pair; out-of-range picks are clamped to the catalogue.
func (s *Selector) template(t Type) Template {
	list := s.templates[t]
	i := s.pick(len(list))
	if i < 0 {
		i = 0
	}
	if i >= len(list) {
		i = len(list) - 1
	}
	return list[i]
}

func (s *Selector) collaboratorFailed(name string, uid types.ID, err error) {
	metrics.CollaboratorFailures.WithLabelValues(name).Inc()
	s.logger.Warn("nudge collaborator failed",
		zap.String("collaborator", name),
		zap.String("user_id", string(uid)),
		zap.Error(err),
	)
}

// parseContextTime reads CurrentTime as an ISO-8601 date-time in UTC.
func parseContextTime(raw string) (time.Time, error) {
	t, err := types.ParseISOTime(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: current_time: %v", ErrInvalidInput, err)
	}
	return t, nil
}
