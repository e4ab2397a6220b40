package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// RevenueSummary aggregates billing activity for a date range. Billed is the
// face value of non-void invoices; Collected and Refunded are cash moves in
// the range regardless of which invoice date they settle.
type RevenueSummary struct {
	From         string
	To           string
	InvoiceCount int
	Billed       decimal.Decimal
	Collected    decimal.Decimal
	Refunded     decimal.Decimal
	Net          decimal.Decimal // Collected - Refunded
}

// OutstandingInvoice is one unpaid or partially paid invoice on the
// receivables report.
type OutstandingInvoice struct {
	InvoiceID     int
	InvoiceNumber string
	PatientID     int
	InvoiceDate   string
	DueDate       *string
	Total         decimal.Decimal
	Balance       decimal.Decimal
	Overdue       bool
}

// SupplierBalance summarizes the money position with one supplier across all
// their purchase orders.
type SupplierBalance struct {
	SupplierID   int
	SupplierName string
	OrderedValue decimal.Decimal
	Paid         decimal.Decimal
	CreditOpen   decimal.Decimal // unspent supplier credit
	BalanceDue   decimal.Decimal
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only reporting queries for the front desk
// and management: collections, receivables, payables, and restock lists.
type ReportingService interface {
	// GetRevenueSummary aggregates billing for an inclusive date range
	// (YYYY-MM-DD). Empty bounds mean the current day.
	GetRevenueSummary(ctx context.Context, fromDate, toDate string) (*RevenueSummary, error)

	// GetOutstandingInvoices returns non-void invoices with a positive
	// balance, oldest first. Overdue is set when the due date has passed.
	GetOutstandingInvoices(ctx context.Context) ([]OutstandingInvoice, error)

	// GetSupplierBalances returns one row per supplier with purchase
	// activity, including unspent credit.
	GetSupplierBalances(ctx context.Context) ([]SupplierBalance, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	pool    *pgxpool.Pool
	billing BillingService
}

// NewReportingService constructs a ReportingService backed by the given pool.
// Balance figures are derived through the billing service so the replay
// logic stays in one place.
func NewReportingService(pool *pgxpool.Pool, billing BillingService) ReportingService {
	return &reportingService{pool: pool, billing: billing}
}

func (s *reportingService) GetRevenueSummary(ctx context.Context, fromDate, toDate string) (*RevenueSummary, error) {
	today := time.Now().Format("2006-01-02")
	if fromDate == "" {
		fromDate = today
	}
	if toDate == "" {
		toDate = today
	}
	if _, err := time.Parse("2006-01-02", fromDate); err != nil {
		return nil, fmt.Errorf("invalid from date %q: %w", fromDate, ErrConstraintViolation)
	}
	if _, err := time.Parse("2006-01-02", toDate); err != nil {
		return nil, fmt.Errorf("invalid to date %q: %w", toDate, ErrConstraintViolation)
	}

	summary := RevenueSummary{From: fromDate, To: toDate}

	invoices, err := s.billing.ListInvoices(ctx, InvoiceFilter{DateFrom: fromDate, DateTo: toDate, Limit: 10000})
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		if inv.Status == InvoiceStatusVoid {
			continue
		}
		summary.InvoiceCount++
		summary.Billed = summary.Billed.Add(inv.Total)
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE paid_at::date BETWEEN $1::date AND $2::date
	`, fromDate, toDate).Scan(&summary.Collected); err != nil {
		return nil, fmt.Errorf("failed to sum collections: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE refunded_at::date BETWEEN $1::date AND $2::date
	`, fromDate, toDate).Scan(&summary.Refunded); err != nil {
		return nil, fmt.Errorf("failed to sum refunds: %w", err)
	}
	summary.Net = summary.Collected.Sub(summary.Refunded)
	return &summary, nil
}

func (s *reportingService) GetOutstandingInvoices(ctx context.Context) ([]OutstandingInvoice, error) {
	// Statuses are kept current by the billing service on every payment and
	// refund, so the status filter is a safe pre-selection; balances are
	// still derived per invoice.
	invoices, err := s.billing.ListInvoices(ctx, InvoiceFilter{Limit: 10000})
	if err != nil {
		return nil, err
	}

	today := time.Now().Format("2006-01-02")
	var outstanding []OutstandingInvoice
	for _, inv := range invoices {
		if inv.Status == InvoiceStatusVoid || !inv.Balance.IsPositive() {
			continue
		}
		o := OutstandingInvoice{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			PatientID:     inv.PatientID,
			InvoiceDate:   inv.InvoiceDate,
			DueDate:       inv.DueDate,
			Total:         inv.Total,
			Balance:       inv.Balance,
		}
		if inv.DueDate != nil && *inv.DueDate < today {
			o.Overdue = true
		}
		outstanding = append(outstanding, o)
	}

	// Oldest receivables first.
	sort.Slice(outstanding, func(i, j int) bool {
		if outstanding[i].InvoiceDate != outstanding[j].InvoiceDate {
			return outstanding[i].InvoiceDate < outstanding[j].InvoiceDate
		}
		return outstanding[i].InvoiceID < outstanding[j].InvoiceID
	})
	return outstanding, nil
}

func (s *reportingService) GetSupplierBalances(ctx context.Context) ([]SupplierBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.name,
		       COALESCE((
		           SELECT SUM((l.quantity - l.quantity_returned) * l.unit_cost)
		           FROM purchase_order_lines l
		           JOIN purchase_orders po ON po.id = l.po_id
		           WHERE po.supplier_id = s.id AND po.status <> 'cancelled'
		       ), 0) AS ordered_value,
		       COALESCE((
		           SELECT SUM(sp.amount)
		           FROM supplier_payments sp
		           JOIN purchase_orders po ON po.id = sp.po_id
		           WHERE po.supplier_id = s.id
		       ), 0) AS paid,
		       COALESCE((
		           SELECT SUM(sc.balance)
		           FROM supplier_credits sc
		           WHERE sc.supplier_id = s.id AND NOT sc.is_fully_used
		       ), 0) AS credit_open,
		       COALESCE((
		           SELECT SUM(ca.amount)
		           FROM credit_applications ca
		           JOIN purchase_orders po ON po.id = ca.po_id
		           WHERE po.supplier_id = s.id
		       ), 0) AS credit_applied
		FROM suppliers s
		WHERE EXISTS (SELECT 1 FROM purchase_orders po WHERE po.supplier_id = s.id)
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier balances: %w", err)
	}
	defer rows.Close()

	var balances []SupplierBalance
	for rows.Next() {
		var b SupplierBalance
		var creditApplied decimal.Decimal
		if err := rows.Scan(&b.SupplierID, &b.SupplierName, &b.OrderedValue,
			&b.Paid, &b.CreditOpen, &creditApplied); err != nil {
			return nil, fmt.Errorf("failed to scan supplier balance: %w", err)
		}
		b.BalanceDue = b.OrderedValue.Sub(b.Paid).Sub(creditApplied)
		if b.BalanceDue.IsNegative() {
			b.BalanceDue = decimal.Zero
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
