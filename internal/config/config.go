package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	NATSURL           string
	DockerHost        string
	LogLevel          string
	ServiceName       string

	// SamplingInterval is the pause between usage-sampler ticks.
	SamplingInterval time.Duration
	// RuntimeCallTimeout bounds every individual container-runtime call so one
	// unresponsive call cannot stall a whole sampler tick.
	RuntimeCallTimeout time.Duration
	// SamplerMaxConcurrency caps per-tick fan-out across running servers.
	SamplerMaxConcurrency int

	// Billing rates, read at invoice-generation time. Changing them does not
	// retroactively affect already-generated invoices.
	VCPURatePerCoreHour float64
	RAMRatePerGiBHour   float64
	DiskRatePerGiBHour  float64
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:     getEnv("METRICS_LISTEN_ADDR", ":9091"),
		NATSURL:               getEnv("NATS_URL", "nats://localhost:4222"),
		DockerHost:            getEnv("DOCKER_HOST", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		SamplingInterval:      getEnvDuration("USAGE_SAMPLING_INTERVAL", 30*time.Second),
		RuntimeCallTimeout:    getEnvDuration("RUNTIME_CALL_TIMEOUT", 30*time.Second),
		SamplerMaxConcurrency: getEnvInt("SAMPLER_MAX_CONCURRENCY", 16),
		VCPURatePerCoreHour:   getEnvFloat("VCPU_RATE_PER_CORE_HOUR", 0.0100),
		RAMRatePerGiBHour:     getEnvFloat("RAM_RATE_PER_GIB_HOUR", 0.0015),
		DiskRatePerGiBHour:    getEnvFloat("DISK_RATE_PER_GIB_HOUR", 0.00005),
	}

	return cfg, nil
}

// Validate checks the settings the given role cannot run without.
func (c *Config) Validate(role string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s requires DATABASE_URL", role)
	}
	if c.SamplingInterval <= 0 {
		return fmt.Errorf("USAGE_SAMPLING_INTERVAL must be positive")
	}
	if c.RuntimeCallTimeout <= 0 {
		return fmt.Errorf("RUNTIME_CALL_TIMEOUT must be positive")
	}
	if c.SamplerMaxConcurrency <= 0 {
		return fmt.Errorf("SAMPLER_MAX_CONCURRENCY must be positive")
	}
	if c.VCPURatePerCoreHour < 0 || c.RAMRatePerGiBHour < 0 || c.DiskRatePerGiBHour < 0 {
		return fmt.Errorf("billing rates must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare integers are treated as seconds.
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
