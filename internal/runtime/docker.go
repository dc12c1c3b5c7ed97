package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/config"
	"github.com/autobit/compute/internal/model"
)

// cpuPeriod is the CPU accounting period the fractional core limit is
// translated against: cpu_limit 0.5 becomes a 50000us quota per 100000us.
const cpuPeriod = 100000

const containerNamePrefix = "autobit-server-"

// Docker is the real-runtime variant of the adapter.
type Docker struct {
	cli         *client.Client
	logger      zerolog.Logger
	callTimeout time.Duration
}

func newDocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Docker, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	} else {
		opts = append(opts, client.FromEnv)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	pingCtx, cancel := callContext(ctx, cfg.RuntimeCallTimeout)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("ping docker daemon: %w", err)
	}

	return &Docker{
		cli:         cli,
		logger:      logger.With().Str("component", "runtime").Str("mode", "docker").Logger(),
		callTimeout: cfg.RuntimeCallTimeout,
	}, nil
}

func (d *Docker) Mode() string { return "docker" }

func (d *Docker) Close() error { return d.cli.Close() }

func containerName(serverID string) string {
	return containerNamePrefix + serverID
}

// Create resolves the image locally (pulling it if absent) and creates a
// container with the server's CPU quota and memory limit. Swap is pinned to
// the memory limit, which disables it. Disk size is declarative only; the
// runtime is never asked to cap disk.
func (d *Docker) Create(ctx context.Context, srv *model.Server) (string, error) {
	ctx, cancel := callContext(ctx, d.callTimeout)
	defer cancel()

	img := strings.ToLower(srv.Image)

	if _, _, err := d.cli.ImageInspectWithRaw(ctx, img); err != nil {
		d.logger.Info().Str("image", img).Msg("image not found locally, pulling")
		reader, err := d.cli.ImagePull(ctx, img, image.PullOptions{})
		if err != nil {
			return "", fmt.Errorf("pull image %s: %w", img, err)
		}
		// Drain the pull output.
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
	}

	memoryBytes := int64(srv.RAMGiB * 1024 * 1024 * 1024)

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{Image: img},
		&container.HostConfig{
			Resources: container.Resources{
				CPUQuota:  int64(srv.CPULimit * cpuPeriod),
				CPUPeriod: cpuPeriod,
				Memory:    memoryBytes,
				// MemorySwap equal to Memory disables swap.
				MemorySwap: memoryBytes,
			},
		},
		nil, nil, containerName(srv.ID),
	)
	if err != nil {
		return "", fmt.Errorf("create container for server %s: %w", srv.ID, err)
	}

	return resp.ID, nil
}

func (d *Docker) Start(ctx context.Context, handle string) bool {
	ctx, cancel := callContext(ctx, d.callTimeout)
	defer cancel()

	if err := d.cli.ContainerStart(ctx, handle, container.StartOptions{}); err != nil {
		d.logger.Warn().Err(err).Str("handle", handle).Msg("failed to start container")
		return false
	}
	return true
}

func (d *Docker) Stop(ctx context.Context, handle string, graceSeconds int) bool {
	ctx, cancel := callContext(ctx, d.callTimeout)
	defer cancel()

	if err := d.cli.ContainerStop(ctx, handle, container.StopOptions{Timeout: &graceSeconds}); err != nil {
		d.logger.Warn().Err(err).Str("handle", handle).Msg("failed to stop container")
		return false
	}
	return true
}

func (d *Docker) Delete(ctx context.Context, handle string, force bool) bool {
	ctx, cancel := callContext(ctx, d.callTimeout)
	defer cancel()

	if err := d.cli.ContainerRemove(ctx, handle, container.RemoveOptions{Force: force}); err != nil {
		d.logger.Warn().Err(err).Str("handle", handle).Msg("failed to remove container")
		return false
	}
	return true
}

// statsPayload picks out the fields of the one-shot stats document the
// adapter needs. storage_stats.size is only reported by some storage
// drivers; absent means 0.
type statsPayload struct {
	CPUStats    cpuStats `json:"cpu_stats"`
	PreCPUStats cpuStats `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
	} `json:"memory_stats"`
	StorageStats struct {
		Size uint64 `json:"size"`
	} `json:"storage_stats"`
}

type cpuStats struct {
	CPUUsage struct {
		TotalUsage  uint64   `json:"total_usage"`
		PercpuUsage []uint64 `json:"percpu_usage"`
	} `json:"cpu_usage"`
	SystemUsage uint64 `json:"system_cpu_usage"`
	OnlineCPUs  uint32 `json:"online_cpus"`
}

func (d *Docker) Stats(ctx context.Context, handle string) (*Stats, bool) {
	ctx, cancel := callContext(ctx, d.callTimeout)
	defer cancel()

	resp, err := d.cli.ContainerStats(ctx, handle, false)
	if err != nil {
		d.logger.Warn().Err(err).Str("handle", handle).Msg("failed to read container stats")
		return nil, false
	}
	defer resp.Body.Close()

	var payload statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		d.logger.Warn().Err(err).Str("handle", handle).Msg("failed to decode container stats")
		return nil, false
	}

	cores := int(payload.CPUStats.OnlineCPUs)
	if cores == 0 {
		cores = len(payload.CPUStats.CPUUsage.PercpuUsage)
	}

	cpuPct := calcCPUPercent(
		payload.CPUStats.CPUUsage.TotalUsage,
		payload.PreCPUStats.CPUUsage.TotalUsage,
		payload.CPUStats.SystemUsage,
		payload.PreCPUStats.SystemUsage,
		cores,
	)

	return &Stats{
		CPUPercent: round2(cpuPct),
		MemoryMiB:  round2(float64(payload.MemoryStats.Usage) / (1024 * 1024)),
		DiskGiB:    round2(float64(payload.StorageStats.Size) / (1024 * 1024 * 1024)),
	}, true
}

func (d *Docker) IsRunning(ctx context.Context, handle string) bool {
	ctx, cancel := callContext(ctx, d.callTimeout)
	defer cancel()

	info, err := d.cli.ContainerInspect(ctx, handle)
	if err != nil {
		d.logger.Warn().Err(err).Str("handle", handle).Msg("failed to inspect container")
		return false
	}
	return info.State != nil && info.State.Running
}
