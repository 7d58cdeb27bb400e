package engagement

import (
	"errors"
	"time"
)

var (
	// ErrInvalidUser is returned for an empty user id.
	ErrInvalidUser = errors.New("invalid user")
	// ErrQuestionLimitReached is returned when recording past the daily limit.
	ErrQuestionLimitReached = errors.New("daily question limit reached")
)

// DefaultDailyLimit is how many questions a user may receive per UTC day.
const DefaultDailyLimit = 2

// counterTTL keeps a day's counter alive past midnight in every timezone.
const counterTTL = 48 * time.Hour
