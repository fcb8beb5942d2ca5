package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. All values must stay low-cardinality: Pyroscope
// keeps a profile series per label combination.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelNetwork    = "network"
	ProfilingLabelOperation  = "operation"
)

// maxLabelValueLength caps label values; anything longer is truncated.
const maxLabelValueLength = 128

// highCardinalityLabels are keys sanitizeLabels silently drops. Each of
// these is effectively unbounded and would explode the series count.
var highCardinalityLabels = map[string]bool{
	"request_id":      true,
	"trace_id":        true,
	"span_id":         true,
	"tracking_number": true,
	"shipment_id":     true,
	"connection_id":   true,
}

// WithProfilingLabels runs fn with the given Pyroscope labels applied, so
// samples collected inside fn can be filtered by them in the profiler UI.
// pyroscope.TagWrapper rides on Go's native pprof labels, so the labels
// also show up in plain pprof output.
//
//	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
//	    c.Next()
//	})
//
// The labels map is read once and not retained; callers may reuse or
// mutate it after the call.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// VendorCallLabels builds the label set for an outbound carrier API call.
// Both dimensions are bounded: a handful of networks, a fixed operation
// vocabulary (oauth_token, validate_address, rate, ship, void).
func VendorCallLabels(network, operation string) map[string]string {
	labels := make(map[string]string, 2)
	if network != "" {
		labels[ProfilingLabelNetwork] = network
	}
	if operation != "" {
		labels[ProfilingLabelOperation] = operation
	}
	return labels
}

// sanitizeLabels flattens the map into pyroscope's pair format, dropping
// empty and high-cardinality entries, truncating oversized values, and
// normalizing keys to snake_case. Keys are sorted so output is stable.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > maxLabelValueLength {
			value = value[:maxLabelValueLength]
		}
		if sanitized := sanitizeLabelKey(key); sanitized != "" {
			pairs = append(pairs, sanitized, value)
		}
	}
	return pairs
}

// sanitizeLabelKey lowercases the key, maps separators to underscores, and
// strips anything outside [a-z0-9_].
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	result := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			result = append(result, c)
		}
	}
	return string(result)
}
