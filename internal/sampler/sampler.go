// Package sampler runs the periodic usage-metering loop: every tick it fans
// out over all running servers, reads live stats from the container runtime
// and appends one usage sample per server.
package sampler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/autobit/compute/internal/model"
	"github.com/autobit/compute/internal/platform"
	"github.com/autobit/compute/internal/runtime"
)

var (
	samplesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_samples_recorded_total",
		Help: "Number of usage samples successfully recorded.",
	})
	sampleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_sample_failures_total",
		Help: "Number of servers that failed to yield a sample in a tick.",
	})
	orphansRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orphaned_server_records_removed_total",
		Help: "Number of server records removed because their container disappeared.",
	})
	runningServers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sampled_running_servers",
		Help: "Number of running servers seen in the last sampling tick.",
	})
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "usage_sampling_tick_duration_seconds",
		Help:    "Wall time of one full sampling tick.",
		Buckets: prometheus.DefBuckets,
	})
)

// ServerStore is the slice of the server service the sampler needs.
type ServerStore interface {
	ListRunning(ctx context.Context) ([]model.Server, error)
	RemoveRecord(ctx context.Context, id string) error
}

// SampleRecorder persists one usage sample.
type SampleRecorder interface {
	RecordSample(ctx context.Context, sample *model.UsageSample) error
}

// Sampler drives the metering loop.
type Sampler struct {
	servers        ServerStore
	usage          SampleRecorder
	rt             runtime.Runtime
	interval       time.Duration
	maxConcurrency int
	logger         zerolog.Logger
}

func New(servers ServerStore, usage SampleRecorder, rt runtime.Runtime, interval time.Duration, maxConcurrency int, logger zerolog.Logger) *Sampler {
	return &Sampler{
		servers:        servers,
		usage:          usage,
		rt:             rt,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		logger:         logger.With().Str("component", "usage-sampler").Logger(),
	}
}

// Run ticks until the context is cancelled. The first tick fires immediately
// so a fresh process starts metering without waiting a full interval.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Int("max_concurrency", s.maxConcurrency).Msg("usage sampler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("usage sampler stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick samples every running server once. Per-server failures are counted and
// logged but never abort the tick: one misbehaving container must not starve
// the rest of the fleet of samples.
func (s *Sampler) Tick(ctx context.Context) {
	started := time.Now()
	defer func() { tickDuration.Observe(time.Since(started).Seconds()) }()

	servers, err := s.servers.ListRunning(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list running servers")
		return
	}
	runningServers.Set(float64(len(servers)))
	if len(servers) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i := range servers {
		srv := servers[i]
		g.Go(func() error {
			s.sampleServer(gctx, &srv)
			return nil
		})
	}
	g.Wait()

	s.logger.Debug().Int("servers", len(servers)).Dur("took", time.Since(started)).Msg("sampling tick finished")
}

// sampleServer reads stats for one server and appends a sample. A server
// whose container disappeared out-of-band has its record removed so it stops
// being sampled and billed.
func (s *Sampler) sampleServer(ctx context.Context, srv *model.Server) {
	handle := *srv.RuntimeHandle

	if !s.rt.IsRunning(ctx, handle) {
		s.logger.Warn().Str("server_id", srv.ID).Str("handle", handle).Msg("container gone, removing orphaned server record")
		if err := s.servers.RemoveRecord(ctx, srv.ID); err != nil {
			s.logger.Error().Err(err).Str("server_id", srv.ID).Msg("failed to remove orphaned server record")
			sampleFailures.Inc()
			return
		}
		orphansRemoved.Inc()
		return
	}

	stats, ok := s.rt.Stats(ctx, handle)
	if !ok {
		s.logger.Warn().Str("server_id", srv.ID).Str("handle", handle).Msg("failed to read container stats")
		sampleFailures.Inc()
		return
	}

	sample := &model.UsageSample{
		ID:       platform.NewID(),
		ServerID: srv.ID,
		TS:       time.Now().UTC(),
		CPUPct:   stats.CPUPercent,
		RAMMiB:   stats.MemoryMiB,
		DiskGiB:  stats.DiskGiB,
	}
	if err := s.usage.RecordSample(ctx, sample); err != nil {
		s.logger.Error().Err(err).Str("server_id", srv.ID).Msg("failed to record usage sample")
		sampleFailures.Inc()
		return
	}
	samplesRecorded.Inc()
}
