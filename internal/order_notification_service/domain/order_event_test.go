package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderEvent_SnapshotIsCopied(t *testing.T) {
	items := []LineItem{{Name: "Avocado", Quantity: 2, Price: 40}}
	ev := NewOrderEvent("order-1", ChangeCreated, " Pending ", time.Unix(100, 0), OrderSnapshot{Items: items})

	items[0].Name = "mutated"
	assert.Equal(t, "Avocado", ev.Snapshot().Items[0].Name)

	snap := ev.Snapshot()
	snap.Items[0].Name = "mutated again"
	snap.DisplayID = "X"
	assert.Equal(t, "Avocado", ev.Snapshot().Items[0].Name)
	assert.Empty(t, ev.Snapshot().DisplayID)

	assert.Equal(t, "pending", ev.Status())
	assert.Equal(t, ChangeCreated, ev.ChangeKind())
	assert.Equal(t, "order-1", ev.OrderID())
}

func TestOrderEvent_Reference(t *testing.T) {
	withDisplay := NewOrderEvent("3f2a9c1e-0000-0000-0000-000000000000", ChangeCreated, "pending", time.Now(), OrderSnapshot{DisplayID: "BO-1042"})
	assert.Equal(t, "BO-1042", withDisplay.Reference())

	withoutDisplay := NewOrderEvent("3f2a9c1e-0000-0000-0000-000000000000", ChangeCreated, "pending", time.Now(), OrderSnapshot{})
	assert.Equal(t, "3f2a9c1e", withoutDisplay.Reference())

	short := NewOrderEvent("abc", ChangeCreated, "pending", time.Now(), OrderSnapshot{})
	assert.Equal(t, "abc", short.Reference())
}

func TestDeliveryAttemptConstructors(t *testing.T) {
	start := time.Now()

	sent := SentAttempt("o1", ChannelLiveBell, start)
	assert.Equal(t, OutcomeSent, sent.Outcome)
	assert.Equal(t, ReasonNone, sent.FailureReason)

	fb := FallbackAttempt("o1", ChannelMessagingProvider, start, "https://wa.me/1", "provider not ready")
	assert.Equal(t, OutcomeSent, fb.Outcome)
	assert.True(t, fb.FallbackUsed)
	assert.Equal(t, ReasonNone, fb.FailureReason)

	failed := FailedAttempt("o1", ChannelMessagingProvider, start, ReasonNone, "boom")
	assert.Equal(t, OutcomeFailed, failed.Outcome)
	assert.Equal(t, ReasonUnknown, failed.FailureReason)

	skipped := SkippedAttempt("o1", ChannelLiveBell, start, "duplicate")
	assert.Equal(t, OutcomeSkipped, skipped.Outcome)
	assert.NotEqual(t, sent.ID, skipped.ID)
}

func TestFailureReason_AffectsSession(t *testing.T) {
	assert.True(t, ReasonAuthenticationExpired.AffectsSession())
	assert.True(t, ReasonTransportUnavailable.AffectsSession())
	assert.False(t, ReasonRateLimited.AffectsSession())
	assert.False(t, ReasonRecipientInvalid.AffectsSession())
	assert.False(t, ReasonUnknown.AffectsSession())
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "ready", SessionReady.String())
	assert.Equal(t, "awaiting_authentication", SessionAwaitingAuthentication.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestChangeNotification_Canonicalize(t *testing.T) {
	for _, in := range []string{"insert", " Insert ", "INSERT"} {
		n := ChangeNotification{Type: in, Table: "orders"}
		n.Canonicalize()
		assert.Equal(t, "INSERT", n.Type, "input %q", in)
	}
}
