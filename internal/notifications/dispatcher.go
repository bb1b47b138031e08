package notifications

import (
	"context"
	"log/slog"

	"agora/internal/middleware"
)

// Dispatcher delivers domain events through Redis and, when configured, NATS.
// Delivery is best effort: failures are logged and never surface to callers.
type Dispatcher struct {
	notifier *Notifier
	mirror   *Mirror
}

// NewDispatcher builds a Dispatcher; either transport may be nil.
func NewDispatcher(notifier *Notifier, mirror *Mirror) *Dispatcher {
	return &Dispatcher{notifier: notifier, mirror: mirror}
}

// Publish fans ev out to every configured transport.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if err := d.notifier.PublishEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
	if err := d.mirror.Publish(ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to mirror event to nats",
			slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}
