package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys set by handlers so downstream middleware can attach the
// carrier context a request operated on.
const (
	// ContextConnectionIDKey carries the resolved connection id.
	ContextConnectionIDKey = "connection_id"
	// ContextNetworkKey carries the carrier network (ups, fedex).
	ContextNetworkKey = "carrier_network"
)

// Length caps for values copied from headers into trace attributes.
const (
	MaxRequestIDLength    = 128
	MaxConnectionIDLength = 64
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "carrier-gateway",
		Enabled:     true,
	}
}

// Tracing returns the server span middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig starts a server span per request via otelgin, named
// "METHOD route_pattern". Pair it with SpanEnrichment, registered after it
// in the chain, to pick up attributes handlers resolve during the request.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnrichment decorates the server span after the handler has run, while
// otelgin still holds it open: request_id, connection_id, and network become
// attributes, and 4xx responses get an error status (otelgin only flags
// 5xx on its own). Must be registered after the Tracing middleware.
func SpanEnrichment() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if requestID := traceRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if connectionID := traceConnectionID(c); connectionID != "" {
			span.SetAttributes(attribute.String("connection_id", connectionID))
		}
		if network := traceNetwork(c); network != "" {
			span.SetAttributes(attribute.String("network", network))
		}

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// traceRequestID prefers the id the RequestID middleware stored; the raw
// header is a fallback, truncated so an abusive client cannot bloat spans.
func traceRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// traceConnectionID reads the id a handler resolved, falling back to the
// :id path parameter. Path values must look like UUIDs; anything else is
// attacker-controlled input and stays out of the span.
func traceConnectionID(c *gin.Context) string {
	if connectionID, exists := c.Get(ContextConnectionIDKey); exists {
		if id, ok := connectionID.(string); ok && id != "" {
			return id
		}
	}

	paramID := c.Param("id")
	if paramID != "" && len(paramID) <= MaxConnectionIDLength && uuidRegex.MatchString(paramID) {
		return paramID
	}
	return ""
}

func traceNetwork(c *gin.Context) string {
	if network, exists := c.Get(ContextNetworkKey); exists {
		if n, ok := network.(string); ok && n != "" {
			return n
		}
	}
	return ""
}
