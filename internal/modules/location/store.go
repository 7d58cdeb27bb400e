// README: Location store backed by Redis (recent samples + GEO) and Postgres snapshots.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tenkap/internal/types"
)

const (
	userGeoKey       = "location:geo:users"
	samplesKeyPrefix = "location:user:%s:samples"
	// maxSamples bounds the per-user history list.
	maxSamples = 50
	samplesTTL = 24 * time.Hour
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

// PushSample prepends a sample to the user's history and trims it.
func (s *Store) PushSample(ctx context.Context, id types.ID, sample Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}
	key := samplesKey(id)
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, maxSamples-1)
	pipe.Expire(ctx, key, samplesTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentSamples returns up to limit samples, newest-first. Entries that fail
// to decode are skipped.
func (s *Store) RecentSamples(ctx context.Context, id types.ID, limit int) ([]Sample, error) {
	if limit <= 0 || limit > maxSamples {
		limit = maxSamples
	}
	raw, err := s.redis.LRange(ctx, samplesKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(raw))
	for _, r := range raw {
		var sample Sample
		if err := json.Unmarshal([]byte(r), &sample); err != nil {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// SetGeo records the user's live position for radius queries.
func (s *Store) SetGeo(ctx context.Context, id types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, userGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// RemoveGeo drops a user from radius queries.
func (s *Store) RemoveGeo(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, userGeoKey, string(id)).Err()
}

// NearbyUsers returns live users within radiusMeters of p, closest first.
func (s *Store) NearbyUsers(ctx context.Context, p types.Point, radiusMeters float64) ([]NearbyUser, error) {
	results, err := s.redis.GeoSearchLocation(ctx, userGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]NearbyUser, len(results))
	for i, r := range results {
		out[i] = NearbyUser{UserID: types.ID(r.Name), DistanceMeters: r.Dist}
	}
	return out, nil
}

// AppendSnapshot persists a sample to Postgres. A nil pool disables
// persistence.
func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO location_snapshots (user_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(snap.UserID), snap.Position.Lat, snap.Position.Lng, snap.RecordedAt,
	)
	return err
}

func samplesKey(id types.ID) string {
	return fmt.Sprintf(samplesKeyPrefix, string(id))
}
