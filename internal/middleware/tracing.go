package middleware

import (
	"fmt"
	"strings"

	"feedsync/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys describing what a request did to the feed.
const (
	AttrFeedResource = "feedsync.resource"
	AttrStreamTable  = "feedsync.stream.table"
	AttrStreamFilter = "feedsync.stream.filter"
	AttrPageLimit    = "feedsync.page.limit"
	AttrPageOffset   = "feedsync.page.offset"
)

// TracingMiddleware opens a server span per request. The span is renamed to
// the matched route once routing is done, because global middleware runs
// before the router picks a handler.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, "HTTP "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		span.SetAttributes(feedAttributes(c, route)...)

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}
		if userID := c.Locals("userID"); userID != nil {
			span.SetAttributes(attribute.String("user.id", fmt.Sprintf("%v", userID)))
		}

		return err
	}
}

// feedAttributes names the feed resource behind route and, for list and
// stream routes, the window or topic the caller asked for.
func feedAttributes(c *fiber.Ctx, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if res := feedResource(route); res != "" {
		attrs = append(attrs, attribute.String(AttrFeedResource, res))
	}
	if route == "/api/ws/changes" {
		attrs = append(attrs, attribute.String(AttrStreamTable, c.Query("table")))
		if filter := c.Query("filter"); filter != "" {
			attrs = append(attrs, attribute.String(AttrStreamFilter, filter))
		}
		return attrs
	}
	if c.Method() != fiber.MethodGet {
		return attrs
	}
	for _, q := range []struct{ param, key string }{
		{"limit", AttrPageLimit},
		{"comment_limit", AttrPageLimit},
		{"offset", AttrPageOffset},
	} {
		if c.Query(q.param) != "" {
			attrs = append(attrs, attribute.Int(q.key, c.QueryInt(q.param, 0)))
		}
	}
	return attrs
}

// feedResource maps a route to the collection it serves. The most specific
// path segment wins, so /api/posts/:id/comments is "comments".
func feedResource(route string) string {
	resource := ""
	for _, seg := range strings.Split(strings.TrimPrefix(route, "/api/"), "/") {
		switch seg {
		case "posts", "comments", "likes", "users", "notifications":
			resource = seg
		case "ws":
			return "changes"
		}
	}
	return resource
}
