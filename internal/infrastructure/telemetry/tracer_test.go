package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func disabledTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "carrier-gateway-test",
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := disabledTelemetryConfig()

	tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.Equal(t, cfg.ServiceName, tp.GetConfig().ServiceName)
	assert.False(t, tp.GetConfig().Enabled)
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	// Needs a reachable OTLP collector, so only runs outside -short.
	if testing.Short() {
		t.Skip("requires a running collector")
	}

	ctx := context.Background()
	cfg := disabledTelemetryConfig()
	cfg.Enabled = true

	tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("rate-shop").Start(ctx, "rate-shop.quote")
	span.End()

	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_SamplingRatios(t *testing.T) {
	ctx := context.Background()

	for _, ratio := range []float64{0.0, 0.5, 1.0} {
		cfg := disabledTelemetryConfig()
		cfg.SamplingRatio = ratio

		tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, tp.IsEnabled())
		assert.NoError(t, tp.Shutdown(ctx))
	}
}

func TestTracerProvider_DisabledIsStillUsable(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, disabledTelemetryConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	tracer := tp.Tracer("label-purchase")
	require.NotNil(t, tracer)
	_, span := tracer.Start(ctx, "label-purchase.create")
	span.End()

	assert.NoError(t, tp.ForceFlush(ctx))

	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, tp.Shutdown(cancelledCtx))
}

func TestNewTracerProvider_InvalidEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("may attempt a network connection")
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := disabledTelemetryConfig()
	cfg.Enabled = true
	cfg.CollectorEndpoint = "invalid-host:99999"

	// The gRPC exporter connects lazily, so construction usually succeeds
	// even against an unreachable endpoint.
	tp, err := telemetry.NewTracerProvider(ctx, cfg, logger)
	if err != nil {
		t.Logf("exporter construction failed: %v", err)
		return
	}
	_ = tp.Shutdown(context.Background())
}

func TestTracerProvider_SpanProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op while telemetry disabled", func(t *testing.T) {
		tp, err := telemetry.NewTracerProvider(ctx, disabledTelemetryConfig(), zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.False(t, tp.IsSpanProfilesEnabled())
		assert.NoError(t, tp.EnableSpanProfiles())
		assert.False(t, tp.IsSpanProfilesEnabled())
		assert.NoError(t, tp.Shutdown(ctx))
	})

	t.Run("idempotent when enabled", func(t *testing.T) {
		if testing.Short() {
			t.Skip("requires a running collector")
		}

		cfg := disabledTelemetryConfig()
		cfg.Enabled = true

		tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer func() { _ = tp.Shutdown(ctx) }()

		assert.False(t, tp.IsSpanProfilesEnabled())
		require.NoError(t, tp.EnableSpanProfiles())
		assert.True(t, tp.IsSpanProfilesEnabled())
		require.NoError(t, tp.EnableSpanProfiles())
		assert.True(t, tp.IsSpanProfilesEnabled())

		tracer := tp.Tracer("token-refresh")
		_, span := tracer.Start(ctx, "token-refresh.exchange")
		time.Sleep(15 * time.Millisecond) // long enough for the CPU sampler
		span.End()

		assert.NoError(t, tp.ForceFlush(ctx))
	})

	t.Run("concurrent enable is safe", func(t *testing.T) {
		tp, err := telemetry.NewTracerProvider(ctx, disabledTelemetryConfig(), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer func() { _ = tp.Shutdown(ctx) }()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = tp.EnableSpanProfiles()
				_ = tp.IsSpanProfilesEnabled()
			}()
		}
		wg.Wait()

		assert.False(t, tp.IsSpanProfilesEnabled())
	})
}
