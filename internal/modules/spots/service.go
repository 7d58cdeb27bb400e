// README: Spots service answers popular-spot and unexplored-spot lookups for nudges.
package spots

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"tenkap/internal/config"
	"tenkap/internal/maps"
	"tenkap/internal/modules/location"
	"tenkap/internal/types"
)

var ErrBadRequest = errors.New("bad spot request")

// Repository is the persistence the service needs. *Store satisfies it.
type Repository interface {
	PopularCells(ctx context.Context, dayOfWeek, hour int, b Bounds) ([]Cell, error)
	UnvisitedCells(ctx context.Context, userID types.ID, b Bounds) ([]Cell, error)
	VisitedPlaces(ctx context.Context, userID types.ID) (map[string]struct{}, error)
	RecordVisit(ctx context.Context, v Visit) error
}

// PlacesSource is the optional external fallback for unexplored spots.
type PlacesSource interface {
	SearchNearby(ctx context.Context, p types.Point, radiusMeters float64) ([]maps.Place, error)
}

type Service struct {
	repo   Repository
	places PlacesSource
	cfg    config.SpotsConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService builds the service. places may be nil.
func NewService(repo Repository, places PlacesSource, cfg config.SpotsConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = 500
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	return &Service{repo: repo, places: places, cfg: cfg, logger: logger, now: time.Now}
}

// FindNearbyPopularSpot returns the busiest place within the configured
// radius for the weekday/hour slot, or nil when there is none. Ties go to
// the closer place.
func (s *Service) FindNearbyPopularSpot(ctx context.Context, p types.Point, dayOfWeek, hour int) (*Spot, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 || hour < 0 || hour > 23 {
		return nil, ErrBadRequest
	}
	cells, err := s.repo.PopularCells(ctx, dayOfWeek, hour, s.bounds(p))
	if err != nil {
		return nil, err
	}

	var best *Cell
	bestDist := 0.0
	for i := range cells {
		c := &cells[i]
		d := distance(p, c.Position)
		if d > s.cfg.RadiusMeters {
			continue
		}
		if best == nil || c.VisitCount > best.VisitCount || (c.VisitCount == best.VisitCount && d < bestDist) {
			best, bestDist = c, d
		}
	}
	if best == nil {
		return nil, nil
	}
	spot := toSpot(*best)
	return &spot, nil
}

// FindUnexploredNearbySpots lists popular places within the configured
// radius the user has never visited, busiest first. When the heat map has
// nothing and a Places client is configured, well-rated unvisited places
// from the API are returned instead.
func (s *Service) FindUnexploredNearbySpots(ctx context.Context, userID types.ID, p types.Point) ([]Spot, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	cells, err := s.repo.UnvisitedCells(ctx, userID, s.bounds(p))
	if err != nil {
		return nil, err
	}

	inRange := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if distance(p, c.Position) <= s.cfg.RadiusMeters {
			inRange = append(inRange, c)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool { return inRange[i].VisitCount > inRange[j].VisitCount })

	out := make([]Spot, 0, s.cfg.Limit)
	for _, c := range inRange {
		if len(out) == s.cfg.Limit {
			break
		}
		out = append(out, toSpot(c))
	}
	if len(out) > 0 || s.places == nil {
		return out, nil
	}
	return s.fromPlaces(ctx, userID, p)
}

// RecordVisit stores a check-in. A zero VisitedAt uses the current time.
func (s *Service) RecordVisit(ctx context.Context, v Visit) error {
	if v.UserID == "" || v.PlaceName == "" {
		return ErrBadRequest
	}
	if v.VisitedAt.IsZero() {
		v.VisitedAt = s.now()
	}
	v.VisitedAt = v.VisitedAt.UTC()
	return s.repo.RecordVisit(ctx, v)
}

func (s *Service) fromPlaces(ctx context.Context, userID types.ID, p types.Point) ([]Spot, error) {
	visited, err := s.repo.VisitedPlaces(ctx, userID)
	if err != nil {
		return nil, err
	}
	places, err := s.places.SearchNearby(ctx, p, s.cfg.RadiusMeters)
	if err != nil {
		s.logger.Warn("places fallback failed", zap.String("user_id", string(userID)), zap.Error(err))
		return nil, nil
	}

	out := make([]Spot, 0, len(places))
	for _, pl := range places {
		if _, seen := visited[pl.Name]; seen {
			continue
		}
		out = append(out, Spot{Name: pl.Name, Location: pl.Location})
		if len(out) == s.cfg.Limit {
			break
		}
	}
	return out, nil
}

func (s *Service) bounds(p types.Point) Bounds {
	minLat, maxLat, minLng, maxLng := location.BoundingBox(p.Lat, p.Lng, s.cfg.RadiusMeters)
	return Bounds{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
}

func distance(a, b types.Point) float64 {
	return location.HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

func toSpot(c Cell) Spot {
	return Spot{Name: c.PlaceName, Location: c.Position, VisitCount: c.VisitCount}
}
