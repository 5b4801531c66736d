package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

const (
	DefaultLiveBellTopic = "pending-order-notifications"
	liveBellEventName    = "new_pending_order"
)

// Publisher is the pub/sub capability the live bell needs. It is satisfied by
// *messagebroker.NATSClient.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// LiveBellMessage is the broadcast payload. It carries only what a badge
// counter needs.
type LiveBellMessage struct {
	Event string       `json:"event"`
	Data  LiveBellData `json:"data"`
}

type LiveBellData struct {
	OrderID   string    `json:"orderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LiveBellChannel broadcasts order events to connected dashboards. Delivery is
// best effort: with no subscriber the event is simply lost.
type LiveBellChannel struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
}

func NewLiveBellChannel(publisher Publisher, topic string, timeout time.Duration) *LiveBellChannel {
	if topic == "" {
		topic = DefaultLiveBellTopic
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LiveBellChannel{publisher: publisher, topic: topic, timeout: timeout}
}

func (c *LiveBellChannel) Name() domain.Channel { return domain.ChannelLiveBell }

// Topic returns the subject broadcasts are published on.
func (c *LiveBellChannel) Topic() string { return c.topic }

func (c *LiveBellChannel) Deliver(ctx context.Context, ev domain.OrderEvent) domain.DeliveryAttempt {
	started := time.Now()

	payload, err := json.Marshal(NewLiveBellMessage(ev))
	if err != nil {
		return domain.FailedAttempt(ev.OrderID(), c.Name(), started, domain.ReasonUnknown, "encode broadcast: "+err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, c.topic, payload); err != nil {
		return domain.FailedAttempt(ev.OrderID(), c.Name(), started, domain.ReasonTransportUnavailable, err.Error())
	}
	return domain.SentAttempt(ev.OrderID(), c.Name(), started)
}

// NewLiveBellMessage projects ev onto the broadcast payload. createdAt is the
// order's creation time when known, else the time of the change.
func NewLiveBellMessage(ev domain.OrderEvent) LiveBellMessage {
	createdAt := ev.Snapshot().CreatedAt
	if createdAt.IsZero() {
		createdAt = ev.OccurredAt()
	}
	return LiveBellMessage{
		Event: liveBellEventName,
		Data:  LiveBellData{OrderID: ev.OrderID(), CreatedAt: createdAt.UTC()},
	}
}
