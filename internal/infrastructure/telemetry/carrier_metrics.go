// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CarrierMetrics tracks carrier integration activity: vendor API calls,
// OAuth token exchanges, label purchases and voids.
type CarrierMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	vendorRequestTotal    *Counter
	vendorRequestDuration *Histogram
	tokenExchangeTotal    *Counter
	labelCreatedTotal     *Counter
	labelVoidedTotal      *Counter
	rateQuoteTotal        *Counter
}

// CarrierMetricsConfig holds configuration for carrier metrics.
type CarrierMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewCarrierMetrics creates a new CarrierMetrics instance.
func NewCarrierMetrics(cfg CarrierMetricsConfig) (*CarrierMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CarrierMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	cm.vendorRequestTotal, err = NewCounter(
		cfg.Meter,
		"carrier_vendor_request_total",
		"Total number of carrier vendor API requests",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	cm.vendorRequestDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "carrier_vendor_request_duration_seconds",
		Description: "Duration of carrier vendor API requests",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	cm.tokenExchangeTotal, err = NewCounter(
		cfg.Meter,
		"carrier_token_exchange_total",
		"Total number of OAuth token exchanges against carrier auth servers",
		"{exchanges}",
	)
	if err != nil {
		return nil, err
	}

	cm.labelCreatedTotal, err = NewCounter(
		cfg.Meter,
		"carrier_label_created_total",
		"Total number of shipping labels purchased",
		"{labels}",
	)
	if err != nil {
		return nil, err
	}

	cm.labelVoidedTotal, err = NewCounter(
		cfg.Meter,
		"carrier_label_voided_total",
		"Total number of shipping label void attempts",
		"{voids}",
	)
	if err != nil {
		return nil, err
	}

	cm.rateQuoteTotal, err = NewCounter(
		cfg.Meter,
		"carrier_rate_quote_total",
		"Total number of rate quotes requested from carriers",
		"{quotes}",
	)
	if err != nil {
		return nil, err
	}

	return cm, nil
}

// Outcome labels a vendor interaction result for metrics.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// RecordVendorRequest records one round trip to a carrier API.
func (cm *CarrierMetrics) RecordVendorRequest(ctx context.Context, network, operation string, outcome Outcome, elapsed time.Duration) {
	cm.vendorRequestTotal.Inc(ctx,
		AttrNetwork.String(network),
		AttrOperation.String(operation),
		AttrOutcome.String(string(outcome)),
	)
	cm.vendorRequestDuration.RecordDuration(ctx, elapsed,
		AttrNetwork.String(network),
		AttrOperation.String(operation),
	)
}

// RecordTokenExchange records an OAuth client-credentials exchange.
func (cm *CarrierMetrics) RecordTokenExchange(ctx context.Context, network string, outcome Outcome) {
	cm.tokenExchangeTotal.Inc(ctx,
		AttrNetwork.String(network),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordLabelCreated records a purchased label.
func (cm *CarrierMetrics) RecordLabelCreated(ctx context.Context, network, serviceCode string) {
	cm.labelCreatedTotal.Inc(ctx,
		AttrNetwork.String(network),
		AttrServiceCode.String(serviceCode),
	)
}

// RecordLabelVoided records a void attempt and its outcome.
func (cm *CarrierMetrics) RecordLabelVoided(ctx context.Context, network string, outcome Outcome) {
	cm.labelVoidedTotal.Inc(ctx,
		AttrNetwork.String(network),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordRateQuote records one service-level rate quote and its outcome.
func (cm *CarrierMetrics) RecordRateQuote(ctx context.Context, network, serviceCode string, outcome Outcome) {
	cm.rateQuoteTotal.Inc(ctx,
		AttrNetwork.String(network),
		AttrServiceCode.String(serviceCode),
		AttrOutcome.String(string(outcome)),
	)
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewCarrierMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
