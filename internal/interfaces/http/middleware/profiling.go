// Package middleware provides HTTP middleware for the carrier gateway.
package middleware

import (
	"context"
	"strings"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig controls which requests get continuous-profiling labels.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths and SkipPathPrefixes exclude endpoints whose profiles are
	// noise, like health probes and the swagger UI.
	SkipPaths        []string
	SkipPathPrefixes []string
}

// DefaultProfilingConfig enables profiling labels everywhere except
// operational endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/swagger", "/api-docs"},
	}
}

// Profiling tags each request's goroutine with Pyroscope labels using the
// default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags request execution with method, route pattern,
// controller, and carrier network labels, so CPU and allocation profiles
// can be sliced per endpoint and per vendor in the Pyroscope UI.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if skipProfiling(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func skipProfiling(cfg ProfilingConfig, path string) bool {
	for _, skip := range cfg.SkipPaths {
		if path == skip {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// requestLabels builds the label set for one request. Everything here is
// low-cardinality: the route PATTERN (not the raw path), the HTTP method,
// the controller derived from the route, and the carrier network when a
// handler has already resolved the connection.
func requestLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)

	if method := c.Request.Method; method != "" {
		labels[telemetry.ProfilingLabelMethod] = method
	}

	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}
	if controller := controllerFromRoute(route); controller != "" {
		labels[telemetry.ProfilingLabelController] = controller
	}

	if network, ok := c.Get(ContextNetworkKey); ok {
		if n, ok := network.(string); ok && n != "" {
			labels[telemetry.ProfilingLabelNetwork] = n
		}
	}

	return labels
}

// controllerFromRoute picks the resource segment out of a route pattern:
// "/api/v1/connections/:id/rates" yields "connections".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "" || part == "api":
		case isVersionSegment(part):
		case strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{"):
		default:
			return part
		}
	}
	return ""
}

// isVersionSegment reports whether a path segment looks like "v1", "v2"...
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
