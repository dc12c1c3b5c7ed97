// Package runtime adapts the container runtime behind a narrow capability
// interface. Two variants exist: a Docker-backed one and a mock used when no
// runtime connection can be established. The variant is chosen once at
// construction time and fixed for the process lifetime, so call sites never
// branch on which one is active.
package runtime

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/config"
	"github.com/autobit/compute/internal/model"
)

// Stats is one instantaneous resource reading for a container.
type Stats struct {
	CPUPercent float64
	MemoryMiB  float64
	DiskGiB    float64
}

// Runtime is the capability interface to the container runtime.
//
// Create returns an opaque handle used for all subsequent calls. Start, Stop
// and Delete are idempotent best-effort operations: ordinary runtime errors
// (not found, already stopped) are logged and reported as false rather than
// returned. Stats and IsRunning report absence the same way.
type Runtime interface {
	// Mode reports which variant is active: "docker" or "mock".
	Mode() string
	Create(ctx context.Context, srv *model.Server) (string, error)
	Start(ctx context.Context, handle string) bool
	Stop(ctx context.Context, handle string, graceSeconds int) bool
	Delete(ctx context.Context, handle string, force bool) bool
	Stats(ctx context.Context, handle string) (*Stats, bool)
	IsRunning(ctx context.Context, handle string) bool
}

// New probes the Docker daemon and returns the Docker-backed adapter when it
// answers, or the mock adapter when it does not. The metering and billing
// path keeps functioning either way.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) Runtime {
	d, err := newDocker(ctx, cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("container runtime unavailable, falling back to mock mode")
		return newMock(logger)
	}
	logger.Info().Str("host", cfg.DockerHost).Msg("connected to container runtime")
	return d
}

// calcCPUPercent derives a CPU percentage from two consecutive cumulative
// usage readings. A zero or negative system-time delta reports 0.
func calcCPUPercent(cpuTotal, preCPUTotal, systemTotal, preSystemTotal uint64, cores int) float64 {
	cpuDelta := float64(cpuTotal) - float64(preCPUTotal)
	systemDelta := float64(systemTotal) - float64(preSystemTotal)
	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	return (cpuDelta / systemDelta) * float64(cores) * 100.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
