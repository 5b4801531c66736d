package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestLiveBellChannel_PublishesMinimalPayload(t *testing.T) {
	pub := new(MockPublisher)
	var published []byte
	pub.On("Publish", mock.Anything, DefaultLiveBellTopic, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	ch := NewLiveBellChannel(pub, "", time.Second)
	a := ch.Deliver(context.Background(), testOrderEvent("o-1", "pending"))

	assert.Equal(t, domain.OutcomeSent, a.Outcome)
	assert.Equal(t, domain.ChannelLiveBell, a.Channel)
	pub.AssertExpectations(t)

	var got map[string]any
	require.NoError(t, json.Unmarshal(published, &got))
	assert.Equal(t, "new_pending_order", got["event"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "o-1", data["orderId"])
	assert.Equal(t, "2026-10-18T07:59:00Z", data["createdAt"])
	assert.Len(t, data, 2)
}

func TestLiveBellChannel_PublishErrorIsFailedAttempt(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "bell", mock.Anything).Return(errors.New("nats: connection closed"))

	a := NewLiveBellChannel(pub, "bell", time.Second).Deliver(context.Background(), testOrderEvent("o-1", "pending"))

	assert.Equal(t, domain.OutcomeFailed, a.Outcome)
	assert.Equal(t, domain.ReasonTransportUnavailable, a.FailureReason)
	assert.Contains(t, a.Detail, "connection closed")
}

func TestLiveBellChannel_PublishIsBounded(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, DefaultLiveBellTopic, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(nil)

	NewLiveBellChannel(pub, "", 0).Deliver(context.Background(), testOrderEvent("o-1", "pending"))
	pub.AssertExpectations(t)
}

func TestNewLiveBellMessage_FallsBackToOccurredAt(t *testing.T) {
	occurred := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	ev := domain.NewOrderEvent("o-2", domain.ChangeUpdated, "pending", occurred, domain.OrderSnapshot{})

	msg := NewLiveBellMessage(ev)

	assert.Equal(t, "new_pending_order", msg.Event)
	assert.Equal(t, "o-2", msg.Data.OrderID)
	assert.True(t, occurred.Equal(msg.Data.CreatedAt))
}
