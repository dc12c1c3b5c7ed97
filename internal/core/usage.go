package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/events"
	"github.com/autobit/compute/internal/model"
)

// Aggregation intervals accepted by Aggregate.
var aggregationIntervals = map[string]time.Duration{
	"1m": time.Minute,
	"5m": 5 * time.Minute,
	"1h": time.Hour,
	"1d": 24 * time.Hour,
}

// defaultUsageWindow is applied when the caller leaves the range unspecified.
const defaultUsageWindow = 7 * 24 * time.Hour

// UsageService records usage samples and serves rolled-up views over the
// sample time series.
type UsageService struct {
	db     DB
	pub    EventPublisher
	logger zerolog.Logger
}

func NewUsageService(db DB, pub EventPublisher, logger zerolog.Logger) *UsageService {
	return &UsageService{
		db:     db,
		pub:    pub,
		logger: logger.With().Str("component", "usage-service").Logger(),
	}
}

// RecordSample persists one sample and emits usage.sampled. Samples are
// append-only telemetry.
func (s *UsageService) RecordSample(ctx context.Context, sample *model.UsageSample) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO usage_samples (id, server_id, ts, cpu_pct, ram_mib, disk_gib)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sample.ID, sample.ServerID, sample.TS, sample.CPUPct, sample.RAMMiB, sample.DiskGiB,
	)
	if err != nil {
		return fmt.Errorf("insert usage sample: %w", err)
	}

	s.pub.Publish(ctx, events.SubjectUsageSampled, map[string]string{
		"server_id": sample.ServerID,
		"ts":        sample.TS.Format(time.RFC3339Nano),
	})
	return nil
}

// samplesInRange loads a server's samples within the half-open range
// [from, to), ordered by ts ascending. Shared by aggregation and billing.
func samplesInRange(ctx context.Context, db DB, serverID string, from, to time.Time) ([]model.UsageSample, error) {
	rows, err := db.Query(ctx,
		`SELECT id, server_id, ts, cpu_pct, ram_mib, disk_gib
		 FROM usage_samples
		 WHERE server_id = $1 AND ts >= $2 AND ts < $3
		 ORDER BY ts`,
		serverID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage samples for server %s: %w", serverID, err)
	}
	defer rows.Close()

	var samples []model.UsageSample
	for rows.Next() {
		var sm model.UsageSample
		if err := rows.Scan(&sm.ID, &sm.ServerID, &sm.TS, &sm.CPUPct, &sm.RAMMiB, &sm.DiskGiB); err != nil {
			return nil, fmt.Errorf("scan usage sample: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage samples: %w", err)
	}
	return samples, nil
}

// Aggregate serves the usage query for one server. Ownership must already be
// checked by the caller. A zero from/to defaults to the last 7 days. At 1m
// granularity the raw ordered samples are returned one bucket each; coarser
// intervals bucket by truncating ts to the interval boundary and average per
// bucket.
func (s *UsageService) Aggregate(ctx context.Context, serverID string, from, to time.Time, interval string) ([]model.UsageBucket, error) {
	d, ok := aggregationIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("%w: unknown aggregation interval %q", ErrValidation, interval)
	}

	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultUsageWindow)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: range start must be before range end", ErrValidation)
	}

	samples, err := samplesInRange(ctx, s.db, serverID, from, to)
	if err != nil {
		return nil, err
	}

	if interval == "1m" {
		buckets := make([]model.UsageBucket, 0, len(samples))
		for _, sm := range samples {
			buckets = append(buckets, model.UsageBucket{
				TS:          sm.TS,
				CPUPct:      sm.CPUPct,
				RAMMiB:      sm.RAMMiB,
				DiskGiB:     sm.DiskGiB,
				SampleCount: 1,
			})
		}
		return buckets, nil
	}

	type acc struct {
		cpu, ram, disk float64
		count          int
	}
	byBucket := make(map[time.Time]*acc)
	for _, sm := range samples {
		key := sm.TS.UTC().Truncate(d)
		a, ok := byBucket[key]
		if !ok {
			a = &acc{}
			byBucket[key] = a
		}
		a.cpu += sm.CPUPct
		a.ram += sm.RAMMiB
		a.disk += sm.DiskGiB
		a.count++
	}

	starts := make([]time.Time, 0, len(byBucket))
	for ts := range byBucket {
		starts = append(starts, ts)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	buckets := make([]model.UsageBucket, 0, len(starts))
	for _, ts := range starts {
		a := byBucket[ts]
		n := float64(a.count)
		buckets = append(buckets, model.UsageBucket{
			TS:          ts,
			CPUPct:      roundTo(a.cpu/n, 2),
			RAMMiB:      roundTo(a.ram/n, 2),
			DiskGiB:     roundTo(a.disk/n, 2),
			SampleCount: a.count,
		})
	}
	return buckets, nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
