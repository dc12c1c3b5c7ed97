package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, ":9091", cfg.MetricsListenAddr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.SamplingInterval)
	assert.Equal(t, 30*time.Second, cfg.RuntimeCallTimeout)
	assert.Equal(t, 16, cfg.SamplerMaxConcurrency)
	assert.InDelta(t, 0.0100, cfg.VCPURatePerCoreHour, 1e-9)
	assert.InDelta(t, 0.0015, cfg.RAMRatePerGiBHour, 1e-9)
	assert.InDelta(t, 0.00005, cfg.DiskRatePerGiBHour, 1e-9)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/compute")
	t.Setenv("USAGE_SAMPLING_INTERVAL", "10s")
	t.Setenv("VCPU_RATE_PER_CORE_HOUR", "0.02")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/compute", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.SamplingInterval)
	assert.InDelta(t, 0.02, cfg.VCPURatePerCoreHour, 1e-9)
}

func TestLoad_BareSecondsInterval(t *testing.T) {
	t.Setenv("USAGE_SAMPLING_INTERVAL", "45")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.SamplingInterval)
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/compute")
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.Validate("compute-api"))

	cfg.DatabaseURL = ""
	err = cfg.Validate("compute-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/compute"
	cfg.SamplerMaxConcurrency = 0
	require.Error(t, cfg.Validate("usage-sampler"))

	cfg.SamplerMaxConcurrency = 8
	cfg.VCPURatePerCoreHour = -1
	require.Error(t, cfg.Validate("compute-api"))
}
