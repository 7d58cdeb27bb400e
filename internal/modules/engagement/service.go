// README: Engagement service rate-limits data-collection questions per user per day.
package engagement

import (
	"context"
	"time"

	"tenkap/internal/types"
)

type Service struct {
	store *Store
	limit int64
	now   func() time.Time
}

// NewService builds the limiter. A non-positive limit uses DefaultDailyLimit.
func NewService(store *Store, dailyLimit int) *Service {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Service{store: store, limit: int64(dailyLimit), now: time.Now}
}

// ShouldAskQuestion reports whether the user is still under today's limit.
func (s *Service) ShouldAskQuestion(ctx context.Context, uid types.ID) (bool, error) {
	if uid == "" {
		return false, ErrInvalidUser
	}
	n, err := s.store.QuestionCount(ctx, uid, s.now())
	if err != nil {
		return false, err
	}
	return n < s.limit, nil
}

// RecordQuestion counts a delivered question and returns how many remain
// today. It fails with ErrQuestionLimitReached when the limit is already used.
func (s *Service) RecordQuestion(ctx context.Context, uid types.ID) (int, error) {
	if uid == "" {
		return 0, ErrInvalidUser
	}
	day := s.now()
	n, err := s.store.IncrQuestions(ctx, uid, day)
	if err != nil {
		return 0, err
	}
	if n > s.limit {
		if err := s.store.DecrQuestions(ctx, uid, day); err != nil {
			return 0, err
		}
		return 0, ErrQuestionLimitReached
	}
	return int(s.limit - n), nil
}

// ReleaseQuestion returns a question recorded today that was never
// delivered.
func (s *Service) ReleaseQuestion(ctx context.Context, uid types.ID) error {
	if uid == "" {
		return ErrInvalidUser
	}
	_, err := s.store.ReleaseQuestion(ctx, uid, s.now())
	return err
}
