package provider

import (
	"context"
	"log/slog"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// ManualLink has no automated transport. It never authenticates, which keeps
// the session out of Ready so every message goes out as a click-to-send link.
type ManualLink struct {
	logger *slog.Logger
}

func NewManualLink(logger *slog.Logger) *ManualLink {
	return &ManualLink{logger: logger.With("provider", string(KindManualLink))}
}

func (p *ManualLink) Kind() Kind { return KindManualLink }

func (p *ManualLink) Connect(ctx context.Context) (ConnectResult, error) {
	p.logger.DebugContext(ctx, "Manual link provider has nothing to connect")
	return ConnectResult{}, nil
}

func (p *ManualLink) Status(context.Context) (Status, error) {
	return Status{}, nil
}

func (p *ManualLink) Send(context.Context, Message) (SendResult, error) {
	return SendResult{}, &Error{Reason: domain.ReasonTransportUnavailable, Message: "manual link provider cannot send"}
}

func (p *ManualLink) Logout(context.Context) error { return nil }
