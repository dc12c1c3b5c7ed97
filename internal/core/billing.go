package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/config"
	"github.com/autobit/compute/internal/events"
	"github.com/autobit/compute/internal/model"
	"github.com/autobit/compute/internal/platform"
)

// Rates are the externally configured billing rates, read at
// invoice-generation time. Changing them does not retroactively affect
// already-generated invoices.
type Rates struct {
	VCPURatePerCoreHour float64 `json:"vcpu_rate_per_core_hour"`
	RAMRatePerGiBHour   float64 `json:"ram_rate_per_gib_hour"`
	DiskRatePerGiBHour  float64 `json:"disk_rate_per_gib_hour"`
}

// BillingService integrates usage samples into resource-hours, prices them
// into invoices, and records payments.
type BillingService struct {
	db     DB
	cfg    *config.Config
	pub    EventPublisher
	logger zerolog.Logger
}

func NewBillingService(db DB, cfg *config.Config, pub EventPublisher, logger zerolog.Logger) *BillingService {
	return &BillingService{
		db:     db,
		cfg:    cfg,
		pub:    pub,
		logger: logger.With().Str("component", "billing-service").Logger(),
	}
}

func (s *BillingService) Rates() Rates {
	return Rates{
		VCPURatePerCoreHour: s.cfg.VCPURatePerCoreHour,
		RAMRatePerGiBHour:   s.cfg.RAMRatePerGiBHour,
		DiskRatePerGiBHour:  s.cfg.DiskRatePerGiBHour,
	}
}

// resourceHours are a server's integrated usage totals over a period.
type resourceHours struct {
	vcpu, ram, disk float64
}

// integrate walks adjacent sample pairs and accumulates resource-hours using
// the earlier sample's values over each interval (left-endpoint integration).
// The last sample never contributes an interval of its own, so a server with
// a single sample in range yields zero hours.
func integrate(srv *model.Server, samples []model.UsageSample) resourceHours {
	var h resourceHours
	for i := 0; i+1 < len(samples); i++ {
		a, b := samples[i], samples[i+1]
		dtHours := b.TS.Sub(a.TS).Hours()
		h.vcpu += (a.CPUPct / 100.0) * float64(srv.Cores) * dtHours
		h.ram += (a.RAMMiB / 1024.0) * dtHours
		h.disk += srv.DiskGiB * dtHours
	}
	return h
}

// Generate produces the invoice for one user over the half-open period
// [start, end). At most one invoice exists per (user, start, end) tuple.
func (s *BillingService) Generate(ctx context.Context, userID string, start, end time.Time) (*model.Invoice, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: period start must be before period end", ErrValidation)
	}

	var existingID string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM invoices WHERE user_id = $1 AND period_start = $2 AND period_end = $3`,
		userID, start, end,
	).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: invoice already exists for this period", ErrConflict)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing invoice: %w", err)
	}

	servers, err := s.listServers(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: user has no servers", ErrValidation)
	}

	rates := s.Rates()
	var items []model.LineItem
	var total float64

	for i := range servers {
		srv := &servers[i]

		samples, err := samplesInRange(ctx, s.db, srv.ID, start, end)
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			continue
		}

		hours := integrate(srv, samples)

		if hours.vcpu > 0 {
			amount := hours.vcpu * rates.VCPURatePerCoreHour
			items = append(items, model.LineItem{
				Kind:     model.LineItemVCPU,
				Unit:     "core-hour",
				Quantity: roundTo(hours.vcpu, 4),
				Rate:     rates.VCPURatePerCoreHour,
				Amount:   roundTo(amount, 4),
			})
			total += amount
		}
		if hours.ram > 0 {
			amount := hours.ram * rates.RAMRatePerGiBHour
			items = append(items, model.LineItem{
				Kind:     model.LineItemRAM,
				Unit:     "gib-hour",
				Quantity: roundTo(hours.ram, 4),
				Rate:     rates.RAMRatePerGiBHour,
				Amount:   roundTo(amount, 4),
			})
			total += amount
		}
		if hours.disk > 0 {
			amount := hours.disk * rates.DiskRatePerGiBHour
			items = append(items, model.LineItem{
				Kind:     model.LineItemDisk,
				Unit:     "gib-hour",
				Quantity: roundTo(hours.disk, 4),
				Rate:     rates.DiskRatePerGiBHour,
				Amount:   roundTo(amount, 4),
			})
			total += amount
		}
	}

	if items == nil {
		items = []model.LineItem{}
	}

	inv := &model.Invoice{
		ID:          platform.NewID(),
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
		LineItems:   items,
		Subtotal:    roundTo(total, 4),
		// No tax model: total equals subtotal.
		Total:     roundTo(total, 4),
		Status:    model.InvoiceStatusDraft,
		CreatedAt: time.Now().UTC(),
	}

	itemsJSON, err := json.Marshal(inv.LineItems)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO invoices (id, user_id, period_start, period_end, line_items, subtotal, total, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.UserID, inv.PeriodStart, inv.PeriodEnd, itemsJSON,
		inv.Subtotal, inv.Total, inv.Status, inv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	s.pub.Publish(ctx, events.SubjectInvoiceGenerated, map[string]string{"invoice_id": inv.ID})
	return inv, nil
}

func (s *BillingService) listServers(ctx context.Context, userID string) ([]model.Server, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list servers for user %s: %w", userID, err)
	}
	defer rows.Close()

	var servers []model.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return servers, nil
}

const invoiceColumns = `id, user_id, period_start, period_end, line_items, subtotal, total, status, created_at`

func scanInvoice(row interface{ Scan(dest ...any) error }) (model.Invoice, error) {
	var inv model.Invoice
	var itemsJSON []byte
	err := row.Scan(&inv.ID, &inv.UserID, &inv.PeriodStart, &inv.PeriodEnd, &itemsJSON,
		&inv.Subtotal, &inv.Total, &inv.Status, &inv.CreatedAt)
	if err != nil {
		return inv, err
	}
	if err := json.Unmarshal(itemsJSON, &inv.LineItems); err != nil {
		return inv, fmt.Errorf("unmarshal line items: %w", err)
	}
	return inv, nil
}

// GetInvoice returns the invoice only when it is owned by the given user.
func (s *BillingService) GetInvoice(ctx context.Context, userID, id string) (*model.Invoice, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2`, id, userID,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get invoice %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return &inv, nil
}

func (s *BillingService) ListInvoices(ctx context.Context, userID string, limit int, cursor string) ([]model.Invoice, bool, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list invoices for user %s: %w", userID, err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate invoices: %w", err)
	}

	hasMore := len(invoices) > limit
	if hasMore {
		invoices = invoices[:limit]
	}
	return invoices, hasMore, nil
}

// Pay records a payment for the invoice's current total and flips it to
// paid. An invoice already paid rejects further payment attempts. The
// transaction insert and the status update are two independent writes with
// no atomicity across them.
func (s *BillingService) Pay(ctx context.Context, userID, invoiceID, method string) (*model.Transaction, error) {
	switch method {
	case model.PaymentMethodCreditCard, model.PaymentMethodBankTransfer, model.PaymentMethodPayPal:
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}

	inv, err := s.GetInvoice(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == model.InvoiceStatusPaid {
		return nil, fmt.Errorf("%w: invoice is already paid", ErrConflict)
	}

	txn := &model.Transaction{
		ID:        platform.NewID(),
		InvoiceID: invoiceID,
		Amount:    inv.Total,
		Method:    method,
		TS:        time.Now().UTC(),
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO transactions (id, invoice_id, amount, method, ts)
		 VALUES ($1, $2, $3, $4, $5)`,
		txn.ID, txn.InvoiceID, txn.Amount, txn.Method, txn.TS,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE invoices SET status = $1 WHERE id = $2 AND user_id = $3`,
		model.InvoiceStatusPaid, invoiceID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark invoice %s paid: %w", invoiceID, err)
	}

	return txn, nil
}
