// README: Nudge service enriches contexts from stored state, selects, books questions, and pushes.
package nudge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tenkap/internal/metrics"
	"tenkap/internal/modules/engagement"
	"tenkap/internal/modules/location"
	"tenkap/internal/modules/matching"
	"tenkap/internal/modules/notify"
	"tenkap/internal/types"
)

const recentSampleLimit = 20

type SampleSource interface {
	RecentSamples(ctx context.Context, id types.ID, limit int) ([]location.Sample, error)
}

type MatchFinder interface {
	NearbyMatches(ctx context.Context, userID types.ID, p types.Point, radiusMeters float64) ([]matching.NearbyMatch, error)
}

// QuestionRecorder books delivered questions against the daily budget and
// gives back ones that were never delivered.
type QuestionRecorder interface {
	RecordQuestion(ctx context.Context, userID types.ID) (int, error)
	ReleaseQuestion(ctx context.Context, userID types.ID) error
}

type Pusher interface {
	Push(ctx context.Context, deviceToken string, p notify.Payload) (string, error)
}

// Deps are the optional collaborators of Service. Nil fields disable the
// matching step.
type Deps struct {
	Samples   SampleSource
	Matches   MatchFinder
	Questions QuestionRecorder
	Pusher    Pusher
}

type Service struct {
	selector *Selector
	deps     Deps
	logger   *zap.Logger
}

func NewService(selector *Selector, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{selector: selector, deps: deps, logger: logger}
}

// Decide fills RecentLocations and NearbyMatches from stored state when the
// caller left them nil, selects a nudge, and books a question if one was
// chosen. The caller's context is not modified.
func (s *Service) Decide(ctx context.Context, uc UserContext) (*Decision, error) {
	d, _, err := s.decide(ctx, uc)
	return d, err
}

// decide reports whether a question was booked for the returned decision.
func (s *Service) decide(ctx context.Context, uc UserContext) (*Decision, bool, error) {
	uc = s.enrich(ctx, uc)

	d, err := s.selector.Select(ctx, uc)
	if err != nil || d == nil {
		return d, false, err
	}
	if d.Type != TypeQuestion || s.deps.Questions == nil {
		return d, false, nil
	}
	if _, err := s.deps.Questions.RecordQuestion(ctx, uc.UserID); err != nil {
		if errors.Is(err, engagement.ErrQuestionLimitReached) {
			s.logger.Info("question budget used concurrently; dropping nudge", zap.String("user_id", string(uc.UserID)))
			return nil, false, nil
		}
		s.logger.Warn("recording question failed", zap.String("user_id", string(uc.UserID)), zap.Error(err))
		return d, false, nil
	}
	return d, true, nil
}

// DecideAndPush runs Decide and delivers the result to deviceToken. It
// returns a nil decision and empty message id when there is nothing to send.
// A question booked for a push that fails is released again.
func (s *Service) DecideAndPush(ctx context.Context, uc UserContext, deviceToken string) (*Decision, string, error) {
	if deviceToken == "" {
		return nil, "", notify.ErrNoDeviceToken
	}
	if s.deps.Pusher == nil {
		return nil, "", errors.New("push delivery not configured")
	}

	d, booked, err := s.decide(ctx, uc)
	if err != nil || d == nil {
		return nil, "", err
	}

	payload := notify.Payload{
		UserID:   uc.UserID,
		Kind:     string(d.Type),
		Title:    d.Message,
		Target:   d.TargetLocation,
		Priority: d.Priority,
	}
	if d.Subcopy != nil {
		payload.Body = *d.Subcopy
	}

	id, err := s.deps.Pusher.Push(ctx, deviceToken, payload)
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		if booked {
			if rerr := s.deps.Questions.ReleaseQuestion(context.WithoutCancel(ctx), uc.UserID); rerr != nil {
				s.logger.Warn("releasing undelivered question failed", zap.String("user_id", string(uc.UserID)), zap.Error(rerr))
			}
		}
		return d, "", err
	}
	metrics.PushDeliveries.WithLabelValues("sent").Inc()
	return d, id, nil
}

func (s *Service) enrich(ctx context.Context, uc UserContext) UserContext {
	if uc.UserID == "" {
		return uc
	}
	if uc.RecentLocations == nil && s.deps.Samples != nil {
		samples, err := s.deps.Samples.RecentSamples(ctx, uc.UserID, recentSampleLimit)
		if err != nil {
			s.logger.Warn("loading recent samples failed", zap.String("user_id", string(uc.UserID)), zap.Error(err))
		} else {
			uc.RecentLocations = samples
		}
	}
	if uc.NearbyMatches == nil && s.deps.Matches != nil {
		found, err := s.deps.Matches.NearbyMatches(ctx, uc.UserID, uc.CurrentLocation.Point(), 0)
		if err != nil {
			s.logger.Warn("loading nearby matches failed", zap.String("user_id", string(uc.UserID)), zap.Error(err))
		} else {
			uc.NearbyMatches = found
		}
	}
	return uc
}
