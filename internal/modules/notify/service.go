// README: Push delivery of nudges through Firebase Cloud Messaging.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"tenkap/internal/types"
)

var ErrNoDeviceToken = errors.New("empty device token")

// highPriorityFrom is the nudge priority at and above which Android delivery
// is marked high priority.
const highPriorityFrom = 7

// Payload is the transport-neutral content of a push.
type Payload struct {
	UserID   types.ID
	Kind     string
	Title    string
	Body     string
	Target   *types.Point
	Priority int
}

// Sender sends one FCM message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Service struct {
	sender Sender
	logger *zap.Logger
}

func NewService(sender Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sender: sender, logger: logger}
}

// Push sends p to deviceToken and returns the FCM message id.
func (s *Service) Push(ctx context.Context, deviceToken string, p Payload) (string, error) {
	if deviceToken == "" {
		return "", ErrNoDeviceToken
	}

	messageID, err := s.sender.Send(ctx, buildMessage(deviceToken, p))
	if err != nil {
		return "", fmt.Errorf("sending FCM for user %s: %w", p.UserID, err)
	}

	s.logger.Info("nudge pushed",
		zap.String("user_id", string(p.UserID)),
		zap.String("type", p.Kind),
		zap.String("message_id", messageID),
	)
	return messageID, nil
}

func buildMessage(token string, p Payload) *messaging.Message {
	data := map[string]string{
		"type":     p.Kind,
		"priority": strconv.Itoa(p.Priority),
	}
	if p.Target != nil {
		data["target_lat"] = strconv.FormatFloat(p.Target.Lat, 'f', 6, 64)
		data["target_lng"] = strconv.FormatFloat(p.Target.Lng, 'f', 6, 64)
	}

	androidPriority := "normal"
	if p.Priority >= highPriorityFrom {
		androidPriority = "high"
	}

	return &messaging.Message{
		Token: token,
		Data:  data,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
		},
	}
}
