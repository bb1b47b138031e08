// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// AuditLogger records security-relevant events (logins, logouts, moderation).
type AuditLogger struct {
	logger *slog.Logger
}

var audit = &AuditLogger{logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("channel", "audit"))}

// SetAuditHandler routes audit records through h, typically the
// request-context-aware handler built by the middleware package.
func SetAuditHandler(h slog.Handler) {
	audit = &AuditLogger{logger: slog.New(h).With(slog.String("channel", "audit"))}
}

// Audit returns the process audit logger.
func Audit() *AuditLogger {
	return audit
}

// Auth logs an authentication event and counts it.
func (l *AuditLogger) Auth(ctx context.Context, event string, username string, err error) {
	outcome := "success"
	attrs := []any{slog.String("event", event), slog.String("username", username)}
	if err != nil {
		outcome = "failure"
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
	attrs = append(attrs, slog.String("outcome", outcome))
	if tid := TraceID(ctx); tid != "" {
		attrs = append(attrs, slog.String("trace_id", tid))
	}
	l.logger.InfoContext(ctx, "auth event", attrs...)
}

// Moderation logs an administrative action against a resource.
func (l *AuditLogger) Moderation(ctx context.Context, adminID uint, action, resource string, resourceID uint) {
	l.logger.InfoContext(ctx, "moderation action",
		slog.Uint64("admin_id", uint64(adminID)),
		slog.String("action", action),
		slog.String("resource", resource),
		slog.Uint64("resource_id", uint64(resourceID)),
	)
}
