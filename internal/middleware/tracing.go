package middleware

import (
	"context"
	"errors"

	"agora/internal/models"
	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request, continuing any trace
// propagated by the caller. The span is renamed to the matched route pattern
// once routing has run, so /api/posts/7 and /api/posts/8 share a name.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(requestAttributes(c)...),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(context.WithValue(ctx, TraceIDKey, traceID))

		err := c.Next()
		finishSpan(c, span, err)
		return err
	}
}

func requestAttributes(c *fiber.Ctx) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Method()),
		attribute.String("http.target", c.OriginalURL()),
		attribute.String("client.address", c.IP()),
		attribute.String("user_agent.original", c.Get(fiber.HeaderUserAgent)),
	}
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		attrs = append(attrs, attribute.String("request.id", rid))
	}
	return attrs
}

// finishSpan records the route, the caller and the outcome. Only server
// errors mark the span as failed; 4xx answers are the API working.
func finishSpan(c *fiber.Ctx, span trace.Span, err error) {
	route := c.Route().Path
	span.SetName(c.Method() + " " + route)

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = models.StatusFor(err)
		}
		span.RecordError(err)
	}
	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	if userID, ok := UserID(c); ok {
		span.SetAttributes(attribute.Int64("enduser.id", int64(userID)))
	}
	if status >= fiber.StatusInternalServerError {
		span.SetStatus(codes.Error, utils.StatusMessage(status))
	}
}
