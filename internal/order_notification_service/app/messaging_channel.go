package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/messaging"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/provider"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/session"
	"github.com/bettyorganic/golang_services/internal/platform/logger"
)

// MessageSender is the send path of the provider session. *session.Manager
// implements it.
type MessageSender interface {
	Send(ctx context.Context, msg provider.Message) session.SendResult
}

// MessagingChannelConfig configures the admin messaging channel.
type MessagingChannelConfig struct {
	AdminRecipient string
	CountryCode    string
	Format         messaging.FormatOptions
	// ItemsTimeout bounds the line item lookup.
	ItemsTimeout time.Duration
}

// MessagingChannel sends the formatted order to the admin through the
// provider session, or builds a manual deep link when the session cannot send.
type MessagingChannel struct {
	sender    MessageSender
	orders    domain.OrderReader
	recipient string
	recipErr  error
	cfg       MessagingChannelConfig
	logger    *slog.Logger
}

// NewMessagingChannel creates the channel. orders may be nil, in which case
// messages list only the items carried by the event. An invalid admin
// recipient is not an error here; every delivery then fails as
// recipient_invalid.
func NewMessagingChannel(sender MessageSender, orders domain.OrderReader, cfg MessagingChannelConfig, log *slog.Logger) *MessagingChannel {
	if cfg.ItemsTimeout <= 0 {
		cfg.ItemsTimeout = 5 * time.Second
	}
	c := &MessagingChannel{
		sender: sender,
		orders: orders,
		cfg:    cfg,
		logger: log.With("component", "messaging_channel"),
	}
	c.recipient, c.recipErr = messaging.NormalizePhone(cfg.AdminRecipient, cfg.CountryCode)
	if c.recipErr != nil {
		c.logger.Error("Admin recipient is not a valid phone number; messaging deliveries will fail",
			"recipient", logger.MaskPhone(cfg.AdminRecipient), "error", c.recipErr)
	}
	return c
}

func (c *MessagingChannel) Name() domain.Channel { return domain.ChannelMessagingProvider }

// Recipient returns the normalized admin recipient, or "" when it is invalid.
func (c *MessagingChannel) Recipient() string { return c.recipient }

func (c *MessagingChannel) Deliver(ctx context.Context, ev domain.OrderEvent) domain.DeliveryAttempt {
	started := time.Now()
	if c.recipErr != nil {
		return domain.FailedAttempt(ev.OrderID(), c.Name(), started, domain.ReasonRecipientInvalid, c.recipErr.Error())
	}

	body := messaging.FormatOrderMessage(ev, c.loadItems(ctx, ev), c.cfg.Format)
	res := c.sender.Send(ctx, provider.Message{Recipient: c.recipient, Body: body, Reference: ev.OrderID()})

	switch {
	case res.Sent:
		a := domain.SentAttempt(ev.OrderID(), c.Name(), started)
		a.Detail = res.ProviderMessageID
		return a
	case res.FallbackEligible:
		link := messaging.BuildDeepLink(c.recipient, body)
		return domain.FallbackAttempt(ev.OrderID(), c.Name(), started, link, fallbackDetail(res))
	default:
		detail := "send failed"
		if res.Err != nil {
			detail = res.Err.Error()
		}
		return domain.FailedAttempt(ev.OrderID(), c.Name(), started, res.Reason, detail)
	}
}

// loadItems returns the event's own items, or reads them from storage.
// A lookup failure only costs the item list.
func (c *MessagingChannel) loadItems(ctx context.Context, ev domain.OrderEvent) []domain.LineItem {
	snap := ev.Snapshot()
	if len(snap.Items) > 0 || c.orders == nil {
		return snap.Items
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ItemsTimeout)
	defer cancel()
	items, err := c.orders.ListOrderItems(ctx, ev.OrderID())
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load order items", "order_id", ev.OrderID(), "error", err)
		return nil
	}
	return items
}

// AdminNotificationResult is the outcome of a free-text admin notification.
type AdminNotificationResult struct {
	Sent              bool                 `json:"sent"`
	FallbackUsed      bool                 `json:"fallback_used"`
	FallbackURL       string               `json:"fallback_url,omitempty"`
	FailureReason     domain.FailureReason `json:"failure_reason,omitempty"`
	ProviderMessageID string               `json:"provider_message_id,omitempty"`
}

// SendAdminNotification sends text to the admin recipient through the same
// provider-or-fallback path as order notifications.
func (c *MessagingChannel) SendAdminNotification(ctx context.Context, text string) AdminNotificationResult {
	if c.recipErr != nil {
		return AdminNotificationResult{FailureReason: domain.ReasonRecipientInvalid}
	}

	res := c.sender.Send(ctx, provider.Message{Recipient: c.recipient, Body: text})
	switch {
	case res.Sent:
		return AdminNotificationResult{Sent: true, ProviderMessageID: res.ProviderMessageID}
	case res.FallbackEligible:
		return AdminNotificationResult{
			Sent:         true,
			FallbackUsed: true,
			FallbackURL:  messaging.BuildDeepLink(c.recipient, text),
		}
	default:
		reason := res.Reason
		if reason == domain.ReasonNone {
			reason = domain.ReasonUnknown
		}
		c.logger.WarnContext(ctx, "Admin notification failed", "reason", string(reason), "error", res.Err)
		return AdminNotificationResult{FailureReason: reason}
	}
}

func fallbackDetail(res session.SendResult) string {
	if res.Reason != domain.ReasonNone {
		return fmt.Sprintf("provider %s (%s), manual link built", res.State, res.Reason)
	}
	return fmt.Sprintf("provider %s, manual link built", res.State)
}
