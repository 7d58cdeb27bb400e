// README: Matching service loads profiles, scores pairs and batches, and discovers nearby matches.
package matching

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tenkap/internal/config"
	"tenkap/internal/metrics"
	"tenkap/internal/modules/location"
	"tenkap/internal/types"
)

var ErrBadRequest = errors.New("bad match request")

// ProfileSource loads stored profiles. *Store satisfies it.
type ProfileSource interface {
	Profile(ctx context.Context, id types.ID) (UserProfile, error)
}

// Locator answers radius queries over live positions.
type Locator interface {
	NearbyUsers(ctx context.Context, p types.Point, radiusMeters float64) ([]location.NearbyUser, error)
}

type Service struct {
	profiles ProfileSource
	locator  Locator
	scorer   *Scorer
	cfg      config.MatchingConfig
	logger   *zap.Logger
}

func NewService(profiles ProfileSource, locator Locator, cfg config.MatchingConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = defaultFanOut
	}
	return &Service{
		profiles: profiles,
		locator:  locator,
		scorer:   NewScorer(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Score compares two supplied profiles.
func (s *Service) Score(a, b UserProfile) MatchScore {
	m := s.scorer.Match(a, b)
	metrics.MatchScores.Observe(m.Score)
	return m
}

// ScoreByID compares two stored profiles.
func (s *Service) ScoreByID(ctx context.Context, a, b types.ID) (MatchScore, error) {
	if a == "" || b == "" {
		return MatchScore{}, ErrBadRequest
	}
	pa, err := s.profiles.Profile(ctx, a)
	if err != nil {
		return MatchScore{}, err
	}
	pb, err := s.profiles.Profile(ctx, b)
	if err != nil {
		return MatchScore{}, err
	}
	return s.Score(pa, pb), nil
}

// ScoreCandidates scores base against every candidate concurrently. The
// result is index-aligned with candidates.
func (s *Service) ScoreCandidates(ctx context.Context, base UserProfile, candidates []UserProfile) ([]MatchScore, error) {
	out := make([]MatchScore, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FanOut)
	for i := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = s.Score(base, candidates[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// NearbyMatches finds live users within radiusMeters of p, scores them
// against userID, and returns them closest first. Users without a stored
// profile are skipped. A radius of 0 uses the configured default.
func (s *Service) NearbyMatches(ctx context.Context, userID types.ID, p types.Point, radiusMeters float64) ([]NearbyMatch, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	if radiusMeters <= 0 {
		radiusMeters = s.cfg.RadiusMeters
	}

	base, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	nearby, err := s.locator.NearbyUsers(ctx, p, radiusMeters)
	if err != nil {
		return nil, err
	}

	others := make([]location.NearbyUser, 0, len(nearby))
	for _, n := range nearby {
		if n.UserID != userID {
			others = append(others, n)
		}
	}

	found := make([]*NearbyMatch, len(others))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FanOut)
	for i, n := range others {
		g.Go(func() error {
			candidate, err := s.profiles.Profile(gctx, n.UserID)
			if errors.Is(err, ErrProfileNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			m := s.Score(base, candidate)
			found[i] = &NearbyMatch{UserID: n.UserID, DistanceMeters: n.DistanceMeters, MatchScore: m.Score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]NearbyMatch, 0, len(found))
	for _, m := range found {
		if m == nil || m.MatchScore < s.cfg.MinScore {
			continue
		}
		out = append(out, *m)
	}
	location.SortByDistance(out, func(m NearbyMatch) float64 { return m.DistanceMeters })

	s.logger.Debug("nearby matches scored",
		zap.String("user_id", string(userID)),
		zap.Int("candidates", len(others)),
		zap.Int("matches", len(out)),
	)
	return out, nil
}
