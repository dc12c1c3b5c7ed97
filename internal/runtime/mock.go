package runtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/model"
)

// Mock is the unavailable-runtime variant. Handles are deterministic
// synthetic ids and every call succeeds trivially, so the metering and
// billing pipeline can run without a live container runtime.
type Mock struct {
	logger zerolog.Logger
}

func newMock(logger zerolog.Logger) *Mock {
	return &Mock{logger: logger.With().Str("component", "runtime").Str("mode", "mock").Logger()}
}

// NewMock returns the mock variant directly. Tests use it to exercise the
// pipeline without a daemon.
func NewMock(logger zerolog.Logger) *Mock {
	return newMock(logger)
}

func (m *Mock) Mode() string { return "mock" }

func (m *Mock) Create(ctx context.Context, srv *model.Server) (string, error) {
	m.logger.Warn().Str("server_id", srv.ID).Msg("runtime unavailable, returning synthetic handle")
	return "mock-" + srv.ID, nil
}

func (m *Mock) Start(ctx context.Context, handle string) bool { return true }

func (m *Mock) Stop(ctx context.Context, handle string, graceSeconds int) bool { return true }

func (m *Mock) Delete(ctx context.Context, handle string, force bool) bool { return true }

// Stats reports fixed synthetic usage so downstream aggregation and billing
// stay exercised in mock mode.
func (m *Mock) Stats(ctx context.Context, handle string) (*Stats, bool) {
	return &Stats{CPUPercent: 25.0, MemoryMiB: 512.0, DiskGiB: 1.0}, true
}

func (m *Mock) IsRunning(ctx context.Context, handle string) bool { return true }
