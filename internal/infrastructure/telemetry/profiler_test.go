package telemetry_test

import (
	"sync"
	"testing"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func disabledProfilerConfig() telemetry.ProfilerConfig {
	return telemetry.ProfilerConfig{
		Enabled:         false,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "carrier-gateway-test",
	}
}

func TestNewProfiler_Disabled(t *testing.T) {
	cfg := disabledProfilerConfig()

	profiler, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, profiler)

	assert.False(t, profiler.IsEnabled())
	assert.Equal(t, cfg.ApplicationName, profiler.GetConfig().ApplicationName)
	assert.NoError(t, profiler.Stop())
}

func TestNewProfiler_ValidatesRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*telemetry.ProfilerConfig)
		wantErr string
	}{
		{"missing server address", func(c *telemetry.ProfilerConfig) { c.ServerAddress = "" }, "server address is required"},
		{"missing application name", func(c *telemetry.ProfilerConfig) { c.ApplicationName = "" }, "application name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := disabledProfilerConfig()
			cfg.Enabled = true
			tt.mutate(&cfg)

			profiler, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Nil(t, profiler)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewProfiler_EnabledIntegration(t *testing.T) {
	// Needs a running Pyroscope server, so only outside -short.
	if testing.Short() {
		t.Skip("requires a running Pyroscope server")
	}

	cfg := disabledProfilerConfig()
	cfg.Enabled = true
	cfg.ProfileCPU = true
	cfg.ProfileAllocObjects = true
	cfg.ProfileAllocSpace = true
	cfg.ProfileInuseObjects = true
	cfg.ProfileInuseSpace = true
	cfg.ProfileGoroutines = true

	profiler, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, profiler.IsEnabled())
	assert.NoError(t, profiler.Stop())
}

func TestProfiler_StopIdempotentAndConcurrent(t *testing.T) {
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, profiler.Stop())
	assert.NoError(t, profiler.Stop())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = profiler.Stop()
		}()
	}
	wg.Wait()
}

func TestProfiler_ConfigRoundTrip(t *testing.T) {
	cfg := disabledProfilerConfig()
	cfg.BasicAuthUser = "tenant"
	cfg.BasicAuthPassword = "secret"
	cfg.DisableGCRuns = true
	cfg.ProfileMutexCount = true
	cfg.ProfileMutexDuration = true
	cfg.MutexProfileFraction = 10
	cfg.ProfileBlockCount = true
	cfg.ProfileBlockDuration = true
	cfg.BlockProfileRate = 10

	profiler, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	got := profiler.GetConfig()
	assert.Equal(t, "tenant", got.BasicAuthUser)
	assert.Equal(t, "secret", got.BasicAuthPassword)
	assert.True(t, got.DisableGCRuns)
	assert.True(t, got.ProfileMutexCount)
	assert.Equal(t, 10, got.MutexProfileFraction)
	assert.True(t, got.ProfileBlockDuration)
	assert.Equal(t, 10, got.BlockProfileRate)

	assert.NoError(t, profiler.Stop())
}

func TestProfiler_ProfileTypeCombinations(t *testing.T) {
	// All stay disabled so no server is needed; the point is that every
	// combination constructs cleanly.
	combos := []func(*telemetry.ProfilerConfig){
		func(c *telemetry.ProfilerConfig) {},
		func(c *telemetry.ProfilerConfig) { c.ProfileCPU = true },
		func(c *telemetry.ProfilerConfig) { c.ProfileAllocObjects = true; c.ProfileAllocSpace = true },
		func(c *telemetry.ProfilerConfig) { c.ProfileInuseObjects = true; c.ProfileInuseSpace = true },
		func(c *telemetry.ProfilerConfig) { c.ProfileGoroutines = true },
		func(c *telemetry.ProfilerConfig) {
			c.ProfileCPU = true
			c.ProfileAllocObjects = true
			c.ProfileAllocSpace = true
			c.ProfileInuseObjects = true
			c.ProfileInuseSpace = true
			c.ProfileGoroutines = true
			c.ProfileMutexCount = true
			c.ProfileMutexDuration = true
			c.ProfileBlockCount = true
			c.ProfileBlockDuration = true
		},
	}

	for i, mutate := range combos {
		cfg := disabledProfilerConfig()
		mutate(&cfg)

		profiler, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
		require.NoError(t, err, "combo %d", i)
		assert.False(t, profiler.IsEnabled())
		assert.NoError(t, profiler.Stop())
	}
}
