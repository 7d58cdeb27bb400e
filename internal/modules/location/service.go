// README: Location service records client fixes and answers recent-history and radius queries.
package location

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tenkap/internal/types"
)

var ErrBadRequest = errors.New("bad location update")

type Service struct {
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store *Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Update stores a fix in the recent-history list and the live GEO set, then
// flushes a snapshot. Snapshot failures are logged, not returned.
func (s *Service) Update(ctx context.Context, u Update) error {
	if u.UserID == "" || !validPoint(u.Position) {
		return ErrBadRequest
	}
	ts := u.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()

	if err := s.store.PushSample(ctx, u.UserID, Sample{Lat: u.Position.Lat, Lng: u.Position.Lng, Timestamp: ts}); err != nil {
		return err
	}
	if err := s.store.SetGeo(ctx, u.UserID, u.Position); err != nil {
		return err
	}
	if err := s.FlushSnapshot(ctx, u.UserID, u.Position, ts); err != nil {
		s.logger.Warn("snapshot flush failed", zap.String("user_id", string(u.UserID)), zap.Error(err))
	}
	return nil
}

func (s *Service) FlushSnapshot(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	return s.store.AppendSnapshot(ctx, Snapshot{
		UserID:     id,
		Position:   pos,
		RecordedAt: at,
	})
}

// RecentSamples returns the user's newest-first history.
func (s *Service) RecentSamples(ctx context.Context, id types.ID, limit int) ([]Sample, error) {
	return s.store.RecentSamples(ctx, id, limit)
}

// NearbyUsers lists live users around p. The result may include the
// requesting user.
func (s *Service) NearbyUsers(ctx context.Context, p types.Point, radiusMeters float64) ([]NearbyUser, error) {
	return s.store.NearbyUsers(ctx, p, radiusMeters)
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
