package core

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/autobit/compute/internal/model"
	"github.com/autobit/compute/internal/runtime"
)

// ---------- Mock DB ----------

// mockDB implements the DB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows for testing.
// It iterates through a list of scan functions, one per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

// newEmptyMockRows returns a mockRows that yields zero rows.
func newEmptyMockRows() *mockRows {
	return &mockRows{}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// ---------- Mock runtime adapter ----------

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Mode() string { return "mock" }

func (m *mockRuntime) Create(ctx context.Context, srv *model.Server) (string, error) {
	args := m.Called(ctx, srv)
	return args.String(0), args.Error(1)
}

func (m *mockRuntime) Start(ctx context.Context, handle string) bool {
	return m.Called(ctx, handle).Bool(0)
}

func (m *mockRuntime) Stop(ctx context.Context, handle string, graceSeconds int) bool {
	return m.Called(ctx, handle, graceSeconds).Bool(0)
}

func (m *mockRuntime) Delete(ctx context.Context, handle string, force bool) bool {
	return m.Called(ctx, handle, force).Bool(0)
}

func (m *mockRuntime) Stats(ctx context.Context, handle string) (*runtime.Stats, bool) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*runtime.Stats), args.Bool(1)
}

func (m *mockRuntime) IsRunning(ctx context.Context, handle string) bool {
	return m.Called(ctx, handle).Bool(0)
}

// ---------- Recording event publisher ----------

// recordingPublisher captures published subjects and payloads.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

// ---------- Row helpers ----------

func serverScanFunc(srv model.Server) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = srv.ID
		*(dest[1].(*string)) = srv.UserID
		*(dest[2].(*string)) = srv.Name
		*(dest[3].(*string)) = srv.Image
		*(dest[4].(*float64)) = srv.CPULimit
		*(dest[5].(*int)) = srv.Cores
		*(dest[6].(*float64)) = srv.RAMGiB
		*(dest[7].(*float64)) = srv.DiskGiB
		*(dest[8].(*string)) = srv.Status
		*(dest[9].(**string)) = srv.RuntimeHandle
		*(dest[10].(*time.Time)) = srv.CreatedAt
		*(dest[11].(*time.Time)) = srv.UpdatedAt
		return nil
	}
}

func sampleScanFunc(sm model.UsageSample) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = sm.ID
		*(dest[1].(*string)) = sm.ServerID
		*(dest[2].(*time.Time)) = sm.TS
		*(dest[3].(*float64)) = sm.CPUPct
		*(dest[4].(*float64)) = sm.RAMMiB
		*(dest[5].(*float64)) = sm.DiskGiB
		return nil
	}
}

func invoiceScanFunc(inv model.Invoice, itemsJSON []byte) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = inv.ID
		*(dest[1].(*string)) = inv.UserID
		*(dest[2].(*time.Time)) = inv.PeriodStart
		*(dest[3].(*time.Time)) = inv.PeriodEnd
		*(dest[4].(*[]byte)) = itemsJSON
		*(dest[5].(*float64)) = inv.Subtotal
		*(dest[6].(*float64)) = inv.Total
		*(dest[7].(*string)) = inv.Status
		*(dest[8].(*time.Time)) = inv.CreatedAt
		return nil
	}
}
