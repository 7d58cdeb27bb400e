// README: Engagement store keeps per-day question counters in Redis.
package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenkap/internal/types"
)

const questionsKeyPrefix = "engagement:questions:%s:%s"

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// QuestionCount returns how many questions the user got on day.
func (s *Store) QuestionCount(ctx context.Context, uid types.ID, day time.Time) (int64, error) {
	n, err := s.redis.Get(ctx, questionsKey(uid, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// IncrQuestions bumps the day's counter and returns the new value.
func (s *Store) IncrQuestions(ctx context.Context, uid types.ID, day time.Time) (int64, error) {
	key := questionsKey(uid, day)
	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// DecrQuestions undoes an increment that overshot the limit.
func (s *Store) DecrQuestions(ctx context.Context, uid types.ID, day time.Time) error {
	return s.redis.Decr(ctx, questionsKey(uid, day)).Err()
}

// releaseScript decrements a counter without taking it below zero.
var releaseScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// ReleaseQuestion gives back one question of day's budget. A missing or
// zero counter is left as is.
func (s *Store) ReleaseQuestion(ctx context.Context, uid types.ID, day time.Time) (int64, error) {
	return releaseScript.Run(ctx, s.redis, []string{questionsKey(uid, day)}).Int64()
}

func questionsKey(uid types.ID, day time.Time) string {
	return fmt.Sprintf(questionsKeyPrefix, string(uid), day.UTC().Format("2006-01-02"))
}
