package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func disabledMetricsConfig() telemetry.MetricsConfig {
	return telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "carrier-gateway-test",
	}
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := disabledMetricsConfig()

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())

	got := mp.GetConfig()
	assert.Equal(t, cfg.ServiceName, got.ServiceName)
	assert.False(t, got.Enabled)

	// Disabled provider still hands out a usable (global) meter.
	require.NotNil(t, mp.Meter("rate-shop"))

	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Needs a running OTEL collector, so only outside -short.
	if testing.Short() {
		t.Skip("requires a running OTEL collector")
	}

	ctx := context.Background()
	cfg := disabledMetricsConfig()
	cfg.Enabled = true
	cfg.ExportInterval = 1 * time.Second
	cfg.Insecure = true

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.True(t, mp.IsEnabled())
	require.NotNil(t, mp.Meter("carrier"))

	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMeterProvider_ShutdownWithCancelledContext(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	// A disabled provider has nothing to flush, so a dead context is fine.
	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, mp.Shutdown(cancelledCtx))
}

func TestMeterProvider_DefaultExportInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a running OTEL collector")
	}

	ctx := context.Background()
	cfg := disabledMetricsConfig()
	cfg.Enabled = true
	cfg.ExportInterval = 0 // falls back to the 60s default
	cfg.Insecure = true

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mp)

	_ = mp.Shutdown(ctx)
}

func TestNewMeterProvider_InvalidEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("may attempt a network connection")
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := disabledMetricsConfig()
	cfg.Enabled = true
	cfg.CollectorEndpoint = "invalid-host:99999"
	cfg.ExportInterval = 1 * time.Second

	// The gRPC exporter connects lazily, so construction usually succeeds
	// even when nothing listens at the endpoint.
	mp, err := telemetry.NewMeterProvider(ctx, cfg, logger)
	if err != nil {
		t.Logf("connection error: %v", err)
		return
	}
	_ = mp.Shutdown(context.Background())
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	meter := mp.Meter("carrier")
	counter, err := telemetry.NewCounter(meter, "carrier_api_calls_total", "Outbound carrier API calls", "{call}")
	require.NoError(t, err)
	require.NotNil(t, counter)

	counter.Add(ctx, 5, telemetry.AttrNetwork.String("ups"))
	counter.Add(ctx, 10, telemetry.AttrNetwork.String("fedex"))
	counter.Inc(ctx)
	counter.Inc(ctx, telemetry.AttrOutcome.String("error"))
}

func TestHistogram_Record(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	meter := mp.Meter("http")
	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_request_duration_seconds",
		Description: "HTTP request duration",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)
	require.NotNil(t, histogram)

	histogram.Record(ctx, 0.005)
	histogram.Record(ctx, 0.1, telemetry.AttrHTTPRoute.String("/api/v1/rates/shop"))
	histogram.Record(ctx, 2.5, telemetry.AttrHTTPRoute.String("/api/v1/labels"))
}

func TestHistogram_RecordDuration(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	meter := mp.Meter("database")
	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query duration",
		Unit:        "s",
		Boundaries:  telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)

	histogram.RecordDuration(ctx, 5*time.Millisecond)
	histogram.RecordDuration(ctx, 100*time.Millisecond, telemetry.AttrDBOperation.String("SELECT"))
	histogram.RecordDuration(ctx, 1*time.Second, telemetry.AttrDBOperation.String("INSERT"))
}

func TestHistogram_Boundaries(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	meter := mp.Meter("carrier")

	t.Run("custom boundaries", func(t *testing.T) {
		histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
			Name:        "label_purchase_duration_seconds",
			Description: "Label purchase duration",
			Unit:        "s",
			Boundaries:  []float64{0.1, 0.5, 1.0, 5.0, 10.0},
		})
		require.NoError(t, err)
		histogram.Record(ctx, 0.25)
	})

	t.Run("SDK defaults when no boundaries given", func(t *testing.T) {
		histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
			Name:        "token_refresh_duration_seconds",
			Description: "OAuth token refresh duration",
			Unit:        "s",
		})
		require.NoError(t, err)
		histogram.Record(ctx, 1.5)
	})
}

func TestGauge_Record(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	meter := mp.Meter("database")
	gauge, err := telemetry.NewGauge(meter, "db_pool_connections", "Open database connections", "{connection}")
	require.NoError(t, err)
	require.NotNil(t, gauge)

	gauge.Record(ctx, 10)
	gauge.Record(ctx, 15, telemetry.AttrDBState.String("idle"))
	gauge.Record(ctx, 5, telemetry.AttrDBState.String("in_use"))
}

func TestAttributeKeys(t *testing.T) {
	// Dashboards key off these strings; renames break every panel at once.
	assert.Equal(t, "http.method", string(telemetry.AttrHTTPMethod))
	assert.Equal(t, "http.status_code", string(telemetry.AttrHTTPStatusCode))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.operation", string(telemetry.AttrDBOperation))
	assert.Equal(t, "db.table", string(telemetry.AttrDBTable))
	assert.Equal(t, "db.pool.state", string(telemetry.AttrDBState))
	assert.Equal(t, "carrier.network", string(telemetry.AttrNetwork))
	assert.Equal(t, "carrier.operation", string(telemetry.AttrOperation))
	assert.Equal(t, "carrier.service_code", string(telemetry.AttrServiceCode))
	assert.Equal(t, "carrier.outcome", string(telemetry.AttrOutcome))
	assert.Equal(t, "carrier.connection_id", string(telemetry.AttrConnectionID))
}

func TestDurationBuckets(t *testing.T) {
	assert.Equal(t, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, telemetry.HTTPDurationBuckets)
	assert.Equal(t, []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}, telemetry.DBDurationBuckets)
}

func TestHistogram_TypicalObservations(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, disabledMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	httpHist, err := telemetry.NewHistogram(mp.Meter("http"), telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP server request duration",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	httpHist.Record(ctx, 0.005, telemetry.AttrHTTPMethod.String("GET"))
	httpHist.Record(ctx, 0.05, telemetry.AttrHTTPMethod.String("POST"))
	httpHist.Record(ctx, 5.0, telemetry.AttrHTTPMethod.String("DELETE"))

	dbHist, err := telemetry.NewHistogram(mp.Meter("database"), telemetry.HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query duration",
		Unit:        "s",
		Boundaries:  telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)

	dbHist.Record(ctx, 0.001, telemetry.AttrDBOperation.String("SELECT"))
	dbHist.Record(ctx, 0.01, telemetry.AttrDBOperation.String("INSERT"))
	dbHist.Record(ctx, 1.0, telemetry.AttrDBOperation.String("DELETE"))
}
