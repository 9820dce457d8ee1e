package middleware

import (
	"net/http"

	"iceflux/pkg/tracing"
	"iceflux/pkg/version"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const unmatchedRoute = "unmatched"

// TracingMiddleware opens one server span per ops request. Spans are named after the
// registered route so probes of unknown paths collapse into a single "unmatched" name.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("ops.route", route),
			attribute.String("client.address", c.ClientIP()),
			attribute.String("service.version", version.Version),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.response.status_code", status),
			attribute.Bool("ops.not_ready", route == "/ready" && status == http.StatusServiceUnavailable),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}
