package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func disabledLogsConfig() LogsConfig {
	return LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "carrier-gateway-test",
		Insecure:          true,
	}
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewLoggerProvider(ctx, disabledLogsConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, provider.IsEnabled())
	assert.Nil(t, provider.GetLoggerProvider())
	assert.NoError(t, provider.ForceFlush(ctx))

	// Repeated shutdowns on a disabled provider stay safe.
	assert.NoError(t, provider.Shutdown(ctx))
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestLoggerProvider_GetConfig(t *testing.T) {
	cfg := disabledLogsConfig()

	provider, err := NewLoggerProvider(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	got := provider.GetConfig()
	assert.Equal(t, cfg.CollectorEndpoint, got.CollectorEndpoint)
	assert.Equal(t, cfg.ServiceName, got.ServiceName)
	assert.Equal(t, cfg.Insecure, got.Insecure)
	assert.False(t, got.Enabled)
}

func TestNewLoggerProvider_EnabledWithoutCollector(t *testing.T) {
	// The gRPC exporter connects lazily, so an unreachable collector just
	// means records buffer until shutdown.
	ctx := context.Background()
	cfg := disabledLogsConfig()
	cfg.Enabled = true
	cfg.CollectorEndpoint = "localhost:19999"

	provider, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, provider.IsEnabled())
	assert.NotNil(t, provider.GetLoggerProvider())
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestNewZapOTELCore(t *testing.T) {
	ctx := context.Background()

	t.Run("nil provider yields a nop core", func(t *testing.T) {
		core := NewZapOTELCore(ZapBridgeConfig{
			ServiceName: "carrier-gateway",
			Level:       zapcore.InfoLevel,
		})
		require.NotNil(t, core)
		assert.False(t, core.Enabled(zapcore.InfoLevel))
	})

	t.Run("disabled provider yields a nop core", func(t *testing.T) {
		provider, err := NewLoggerProvider(ctx, disabledLogsConfig(), zap.NewNop())
		require.NoError(t, err)

		core := NewZapOTELCore(ZapBridgeConfig{
			ServiceName:    "carrier-gateway",
			LoggerProvider: provider,
			Level:          zapcore.InfoLevel,
		})
		assert.False(t, core.Enabled(zapcore.InfoLevel))
	})

	t.Run("debug level passes everything through", func(t *testing.T) {
		cfg := disabledLogsConfig()
		cfg.Enabled = true
		cfg.CollectorEndpoint = "localhost:19999"
		provider, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		defer func() { _ = provider.Shutdown(ctx) }()

		core := NewZapOTELCore(ZapBridgeConfig{
			ServiceName:    "carrier-gateway",
			LoggerProvider: provider,
			Level:          zapcore.DebugLevel,
		})

		for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
			assert.True(t, core.Enabled(lvl), "level %s", lvl)
		}
	})

	t.Run("stricter level wraps with a filter", func(t *testing.T) {
		cfg := disabledLogsConfig()
		cfg.Enabled = true
		cfg.CollectorEndpoint = "localhost:19999"
		provider, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		defer func() { _ = provider.Shutdown(ctx) }()

		core := NewZapOTELCore(ZapBridgeConfig{
			ServiceName:    "carrier-gateway",
			LoggerProvider: provider,
			Level:          zapcore.WarnLevel,
		})

		_, isFiltered := core.(*levelFilterCore)
		assert.True(t, isFiltered)
		assert.False(t, core.Enabled(zapcore.InfoLevel))
		assert.True(t, core.Enabled(zapcore.WarnLevel))
		assert.True(t, core.Enabled(zapcore.ErrorLevel))
	})
}

func TestLevelFilterCore(t *testing.T) {
	observed, recorded := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: observed, minLevel: zapcore.WarnLevel}

	logger := zap.New(filtered)
	logger.Debug("token cache hit")
	logger.Info("rate quote returned")
	logger.Warn("carrier responded slowly")
	logger.Error("label purchase failed")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "carrier responded slowly", logs[0].Message)
	assert.Equal(t, "label purchase failed", logs[1].Message)
}

func TestLevelFilterCore_WithKeepsFilter(t *testing.T) {
	observed, recorded := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: observed, minLevel: zapcore.WarnLevel}

	child := filtered.With([]zapcore.Field{zap.String("carrier_network", "fedex")})
	childFilter, ok := child.(*levelFilterCore)
	require.True(t, ok)
	assert.Equal(t, zapcore.WarnLevel, childFilter.minLevel)

	zap.New(child).Warn("void window expired")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Context, zap.String("carrier_network", "fedex"))
}

func TestNewBridgedLogger(t *testing.T) {
	observed, recorded := observer.New(zapcore.InfoLevel)

	logger := NewBridgedLogger(observed, zapcore.NewNopCore(), zap.AddCaller())

	logger.Info("connection verified", zap.String("carrier_network", "ups"))
	logger.Debug("below threshold")
	logger.Warn("token refresh retried")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "connection verified", logs[0].Message)
	assert.Contains(t, logs[0].Context, zap.String("carrier_network", "ups"))
	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
}
