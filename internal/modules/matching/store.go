// README: Profile store; Postgres JSONB rows with a Redis read-through cache.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tenkap/internal/types"
)

const profileKeyPrefix = "matching:profile:%s"

var ErrProfileNotFound = errors.New("profile not found")

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

// Profile returns the stored profile for id, consulting the cache first.
// Cache failures fall back to Postgres.
func (s *Store) Profile(ctx context.Context, id types.ID) (UserProfile, error) {
	if p, ok := s.cached(ctx, id); ok {
		return p, nil
	}
	if s.db == nil {
		return UserProfile{}, ErrProfileNotFound
	}

	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT profile FROM user_profiles WHERE id = $1`, string(id)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("loading profile %s: %w", id, err)
	}

	var p UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return UserProfile{}, fmt.Errorf("decoding profile %s: %w", id, err)
	}
	p.ID = id
	s.cache(ctx, p)
	return p, nil
}

// SaveProfile upserts a profile and refreshes its cache entry.
func (s *Store) SaveProfile(ctx context.Context, p UserProfile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if s.db != nil {
		_, err = s.db.Exec(ctx, `
			INSERT INTO user_profiles (id, profile, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = NOW()`,
			string(p.ID), payload,
		)
		if err != nil {
			return err
		}
	}
	return s.redis.Set(ctx, profileKey(p.ID), payload, profileCacheTTL).Err()
}

func (s *Store) cached(ctx context.Context, id types.ID) (UserProfile, bool) {
	val, err := s.redis.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		return UserProfile{}, false
	}
	var p UserProfile
	if err := json.Unmarshal(val, &p); err != nil {
		return UserProfile{}, false
	}
	p.ID = id
	return p, true
}

func (s *Store) cache(ctx context.Context, p UserProfile) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	s.redis.Set(ctx, profileKey(p.ID), data, profileCacheTTL)
}

func profileKey(id types.ID) string {
	return fmt.Sprintf(profileKeyPrefix, string(id))
}
