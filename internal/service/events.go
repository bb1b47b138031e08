package service

import (
	"context"

	"agora/internal/notifications"
)

// EventPublisher delivers domain events to interested clients. Delivery is
// best effort and never fails the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev notifications.Event)
}

func publish(ctx context.Context, p EventPublisher, ev notifications.Event) {
	if p == nil {
		return
	}
	p.Publish(ctx, ev)
}

// visibleTo reports whether viewerID may see a post that is not publicly listed.
func visibleTo(visible bool, authorID, viewerID uint) bool {
	return visible || (viewerID != 0 && authorID == viewerID)
}
