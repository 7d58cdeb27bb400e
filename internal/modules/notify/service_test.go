package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenkap/internal/types"
)

type recordingSender struct {
	sent []*messaging.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, msg)
	return "projects/tenkap/messages/1", nil
}

func TestPush(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil)

	id, err := svc.Push(context.Background(), "tok", Payload{
		UserID:   "u1",
		Kind:     "coffee_break",
		Title:    "☕ Kahve molası zamanı!",
		Body:     "Narr Cafe'de birkaç kişi var şu an",
		Target:   &types.Point{Lat: 40.9876, Lng: 29.1234},
		Priority: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/tenkap/messages/1", id)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "tok", msg.Token)
	assert.Equal(t, "coffee_break", msg.Data["type"])
	assert.Equal(t, "7", msg.Data["priority"])
	assert.Equal(t, "40.987600", msg.Data["target_lat"])
	assert.Equal(t, "29.123400", msg.Data["target_lng"])
	assert.Equal(t, "☕ Kahve molası zamanı!", msg.Notification.Title)
	assert.Equal(t, "high", msg.Android.Priority)
}

func TestPush_LowPriorityWithoutTarget(t *testing.T) {
	sender := &recordingSender{}
	_, err := NewService(sender, nil).Push(context.Background(), "tok", Payload{Kind: "question", Priority: 3})
	require.NoError(t, err)

	msg := sender.sent[0]
	assert.Equal(t, "normal", msg.Android.Priority)
	assert.NotContains(t, msg.Data, "target_lat")
}

func TestPush_Errors(t *testing.T) {
	_, err := NewService(&recordingSender{}, nil).Push(context.Background(), "", Payload{})
	assert.ErrorIs(t, err, ErrNoDeviceToken)

	boom := errors.New("unregistered")
	_, err = NewService(&recordingSender{err: boom}, nil).Push(context.Background(), "tok", Payload{UserID: "u1"})
	assert.ErrorIs(t, err, boom)
}
