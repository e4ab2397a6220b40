package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx, so read
// helpers work both inside and outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type billingService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
}

func NewBillingService(pool *pgxpool.Pool, inventory InventoryService) BillingService {
	return &billingService{pool: pool, inventory: inventory}
}

var paymentMethods = map[string]bool{
	PaymentMethodCash:       true,
	PaymentMethodUPI:        true,
	PaymentMethodBank:       true,
	PaymentMethodCheque:     true,
	PaymentMethodCreditCard: true,
	PaymentMethodOther:      true,
}

// ── Invoice creation ──────────────────────────────────────────────────────────

func (s *billingService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	if input.PatientID <= 0 {
		return nil, fmt.Errorf("patient id is required: %w", ErrConstraintViolation)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("invoice must have at least one line: %w", ErrConstraintViolation)
	}
	if input.Discount.IsNegative() {
		return nil, fmt.Errorf("invoice discount cannot be negative: %w", ErrConstraintViolation)
	}
	for i, l := range input.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: quantity must be positive, got %d: %w", i+1, l.Quantity, ErrConstraintViolation)
		}
		if l.Discount.IsNegative() {
			return nil, fmt.Errorf("line %d: discount cannot be negative: %w", i+1, ErrConstraintViolation)
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("line %d: unit price cannot be negative: %w", i+1, ErrConstraintViolation)
		}
		if l.ProductID == nil && l.ServiceID == nil && l.Description == "" {
			return nil, fmt.Errorf("line %d: product, service, or description is required: %w", i+1, ErrConstraintViolation)
		}
		if l.ProductID != nil && l.ServiceID != nil {
			return nil, fmt.Errorf("line %d: line cannot reference both a product and a service: %w", i+1, ErrConstraintViolation)
		}
	}

	invoiceDate := input.InvoiceDate
	if invoiceDate == "" {
		invoiceDate = time.Now().Format("2006-01-02")
	}
	day, err := time.Parse("2006-01-02", invoiceDate)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice date %q: %w", input.InvoiceDate, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Resolve catalog prices and consume stock before writing the header, so
	// a stock shortage rejects the whole invoice and nothing is persisted.
	lines := make([]InvoiceLine, 0, len(input.Lines))
	type consumption struct {
		productID int
		qty       int
	}
	var consumptions []consumption
	for i, l := range input.Lines {
		line := InvoiceLine{
			LineNumber:  i + 1,
			ProductID:   l.ProductID,
			ServiceID:   l.ServiceID,
			Description: l.Description,
			Quantity:    l.Quantity,
			Discount:    l.Discount,
		}

		switch {
		case l.ProductID != nil:
			var name string
			var catalogPrice decimal.Decimal
			var stockable, active bool
			err := tx.QueryRow(ctx,
				"SELECT name, unit_price, is_stockable, is_active FROM products WHERE id = $1",
				*l.ProductID,
			).Scan(&name, &catalogPrice, &stockable, &active)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, fmt.Errorf("line %d: product %d: %w", i+1, *l.ProductID, ErrNotFound)
				}
				return nil, fmt.Errorf("failed to resolve product for line %d: %w", i+1, err)
			}
			if !active {
				return nil, fmt.Errorf("line %d: product %q is inactive: %w", i+1, name, ErrConstraintViolation)
			}
			if line.Description == "" {
				line.Description = name
			}
			line.UnitPrice = catalogPrice
			if l.UnitPrice != nil {
				line.UnitPrice = *l.UnitPrice
			}
			if stockable {
				consumptions = append(consumptions, consumption{productID: *l.ProductID, qty: l.Quantity})
			}

		case l.ServiceID != nil:
			var name string
			var catalogPrice decimal.Decimal
			var active bool
			err := tx.QueryRow(ctx,
				"SELECT name, price, is_active FROM services WHERE id = $1",
				*l.ServiceID,
			).Scan(&name, &catalogPrice, &active)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, fmt.Errorf("line %d: service %d: %w", i+1, *l.ServiceID, ErrNotFound)
				}
				return nil, fmt.Errorf("failed to resolve service for line %d: %w", i+1, err)
			}
			if !active {
				return nil, fmt.Errorf("line %d: service %q is inactive: %w", i+1, name, ErrConstraintViolation)
			}
			if line.Description == "" {
				line.Description = name
			}
			line.UnitPrice = catalogPrice
			if l.UnitPrice != nil {
				line.UnitPrice = *l.UnitPrice
			}

		default:
			if l.UnitPrice == nil {
				return nil, fmt.Errorf("line %d: free-text line requires a unit price: %w", i+1, ErrConstraintViolation)
			}
			line.UnitPrice = *l.UnitPrice
		}

		line.LineTotal = LineTotal(line.Quantity, line.UnitPrice, line.Discount)
		lines = append(lines, line)
	}

	// Lock product rows in ID order so two concurrent documents touching the
	// same products cannot deadlock on opposite lock orders.
	sort.Slice(consumptions, func(a, b int) bool { return consumptions[a].productID < consumptions[b].productID })
	for _, c := range consumptions {
		if err := s.inventory.ConsumeTx(ctx, tx, c.productID, c.qty); err != nil {
			return nil, err
		}
	}

	number, err := nextInvoiceNumber(ctx, tx, day)
	if err != nil {
		return nil, err
	}

	total := InvoiceTotal(lines, input.Discount)
	status := StatusForBalance(total, total)

	inv := Invoice{
		InvoiceNumber: number,
		PatientID:     input.PatientID,
		DoctorID:      input.DoctorID,
		AppointmentID: input.AppointmentID,
		InvoiceDate:   invoiceDate,
		DueDate:       input.DueDate,
		Status:        status,
		Discount:      input.Discount,
		Notes:         nullable(input.Notes),
		CreatedBy:     input.CreatedBy,
		Lines:         lines,
		Total:         total,
		Balance:       total,
	}
	if total.IsZero() {
		inv.Balance = decimal.Zero
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, patient_id, doctor_id, appointment_id,
		                      invoice_date, due_date, status, discount, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, inv.InvoiceNumber, inv.PatientID, inv.DoctorID, inv.AppointmentID,
		inv.InvoiceDate, inv.DueDate, inv.Status, inv.Discount, inv.Notes, inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("appointment %v already has an invoice: %w", input.AppointmentID, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.InvoiceID = inv.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_number, product_id, service_id,
			                           description, quantity, unit_price, discount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, inv.ID, line.LineNumber, line.ProductID, line.ServiceID,
			line.Description, line.Quantity, line.UnitPrice, line.Discount,
		).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert invoice line %d: %w", line.LineNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}
	return &inv, nil
}

// nextInvoiceNumber draws the next gapless per-day number (INV-yymmdd-NNNN).
// The upsert locks the day's sequence row for the rest of the transaction,
// so concurrent creations for the same day serialize and never collide.
func nextInvoiceNumber(ctx context.Context, tx pgx.Tx, day time.Time) (string, error) {
	var n int
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (day, last_number)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, day.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to advance invoice sequence: %w", err)
	}
	return fmt.Sprintf("INV-%s-%04d", day.Format("060102"), n), nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *billingService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	return loadInvoice(ctx, s.pool, "id = $1", invoiceID)
}

func (s *billingService) GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error) {
	return loadInvoice(ctx, s.pool, "invoice_number = $1", number)
}

func loadInvoice(ctx context.Context, q querier, where string, arg any) (*Invoice, error) {
	var inv Invoice
	var invoiceDate time.Time
	var dueDate *time.Time
	err := q.QueryRow(ctx, `
		SELECT id, invoice_number, patient_id, doctor_id, appointment_id,
		       invoice_date, due_date, status, discount, notes, created_by, created_at, updated_at
		FROM invoices WHERE `+where,
		arg,
	).Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.DoctorID, &inv.AppointmentID,
		&invoiceDate, &dueDate, &inv.Status, &inv.Discount, &inv.Notes, &inv.CreatedBy,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %v: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	inv.InvoiceDate = invoiceDate.Format("2006-01-02")
	if dueDate != nil {
		d := dueDate.Format("2006-01-02")
		inv.DueDate = &d
	}

	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, line_number, product_id, service_id, description,
		       quantity, unit_price, discount
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_number
	`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.LineNumber, &l.ProductID, &l.ServiceID,
			&l.Description, &l.Quantity, &l.UnitPrice, &l.Discount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		l.LineTotal = LineTotal(l.Quantity, l.UnitPrice, l.Discount)
		inv.Lines = append(inv.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice lines: %w", err)
	}

	payments, refunds, err := paymentHistory(ctx, q, inv.ID)
	if err != nil {
		return nil, err
	}
	applyTotals(&inv, payments, refunds)
	return &inv, nil
}

// paymentHistory loads the payment and refund events for an invoice.
func paymentHistory(ctx context.Context, q querier, invoiceID int) ([]PaymentEvent, []RefundEvent, error) {
	rows, err := q.Query(ctx,
		"SELECT id, amount, paid_at FROM payments WHERE invoice_id = $1 ORDER BY id",
		invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []PaymentEvent
	for rows.Next() {
		var p PaymentEvent
		if err := rows.Scan(&p.ID, &p.Amount, &p.At); err != nil {
			return nil, nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating payments: %w", err)
	}

	refundRows, err := q.Query(ctx, `
		SELECT r.id, r.payment_id, r.amount, r.refunded_at
		FROM refunds r
		JOIN payments p ON p.id = r.payment_id
		WHERE p.invoice_id = $1
		ORDER BY r.id
	`, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query refunds: %w", err)
	}
	defer refundRows.Close()

	var refunds []RefundEvent
	for refundRows.Next() {
		var r RefundEvent
		if err := refundRows.Scan(&r.ID, &r.PaymentID, &r.Amount, &r.At); err != nil {
			return nil, nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, r)
	}
	return payments, refunds, refundRows.Err()
}

// applyTotals derives an invoice's financial fields from its history. A void
// invoice keeps its stored status; the money fields are still derived.
func applyTotals(inv *Invoice, payments []PaymentEvent, refunds []RefundEvent) {
	inv.Total = InvoiceTotal(inv.Lines, inv.Discount)
	t := ComputeTotals(inv.Total, payments, refunds)
	inv.AmountPaid = t.Paid
	inv.AmountRefunded = t.Refunded
	inv.Balance = t.Balance
	inv.Credit = t.Credit
	if inv.Status != InvoiceStatusVoid {
		inv.Status = t.Status
	}
}

func (s *billingService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_number, patient_id, doctor_id, appointment_id,
		       invoice_date, due_date, status, discount, notes, created_by, created_at, updated_at
		FROM invoices
		WHERE ($1 = 0 OR patient_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR invoice_date >= $3::date)
		  AND ($4 = '' OR invoice_date <= $4::date)
		ORDER BY invoice_date DESC, id DESC
		LIMIT $5 OFFSET $6
	`, filter.PatientID, filter.Status, filter.DateFrom, filter.DateTo, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		var invoiceDate time.Time
		var dueDate *time.Time
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.DoctorID,
			&inv.AppointmentID, &invoiceDate, &dueDate, &inv.Status, &inv.Discount,
			&inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.InvoiceDate = invoiceDate.Format("2006-01-02")
		if dueDate != nil {
			d := dueDate.Format("2006-01-02")
			inv.DueDate = &d
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	// Derive totals per invoice. Lists are short (bounded by limit), so a
	// per-invoice history load keeps the replay logic in one place.
	for i := range invoices {
		inv := &invoices[i]
		lineRows, err := s.pool.Query(ctx, `
			SELECT id, invoice_id, line_number, product_id, service_id, description,
			       quantity, unit_price, discount
			FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_number
		`, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to query invoice lines: %w", err)
		}
		for lineRows.Next() {
			var l InvoiceLine
			if err := lineRows.Scan(&l.ID, &l.InvoiceID, &l.LineNumber, &l.ProductID, &l.ServiceID,
				&l.Description, &l.Quantity, &l.UnitPrice, &l.Discount); err != nil {
				lineRows.Close()
				return nil, fmt.Errorf("failed to scan invoice line: %w", err)
			}
			l.LineTotal = LineTotal(l.Quantity, l.UnitPrice, l.Discount)
			inv.Lines = append(inv.Lines, l)
		}
		lineRows.Close()
		if err := lineRows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating invoice lines: %w", err)
		}

		payments, refunds, err := paymentHistory(ctx, s.pool, inv.ID)
		if err != nil {
			return nil, err
		}
		applyTotals(inv, payments, refunds)
	}
	return invoices, nil
}

func (s *billingService) ListPayments(ctx context.Context, invoiceID int) ([]Payment, error) {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, amount, method, paid_at, notes, idempotency_key, recorded_by
		FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt,
			&p.Notes, &p.IdempotencyKey, &p.RecordedBy); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	events, refunds, err := paymentHistory(ctx, s.pool, invoiceID)
	if err != nil {
		return nil, err
	}
	t := ComputeTotals(inv.Total, events, refunds)
	refundedByPayment := make(map[int]decimal.Decimal)
	for _, r := range refunds {
		refundedByPayment[r.PaymentID] = refundedByPayment[r.PaymentID].Add(r.Amount)
	}
	for i := range payments {
		payments[i].Applied = t.RefundableAmount(payments[i].ID)
		payments[i].Refunded = refundedByPayment[payments[i].ID]
	}
	return payments, nil
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (s *billingService) RecordPayment(ctx context.Context, input PaymentInput) (*Payment, error) {
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, fmt.Errorf("payment amount must be positive, got %s: %w", input.Amount, ErrConstraintViolation)
	}
	method := input.Method
	if method == "" {
		method = PaymentMethodCash
	}
	if !paymentMethods[method] {
		return nil, fmt.Errorf("unknown payment method %q: %w", input.Method, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the invoice header: payments against one invoice serialize, so
	// status recomputation always sees the full history.
	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM invoices WHERE id = $1 FOR UPDATE",
		input.InvoiceID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", input.InvoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock invoice: %w", err)
	}

	// Idempotent retry: if the key was already used, return the payment it
	// created instead of recording a duplicate.
	if input.IdempotencyKey != "" {
		var existing Payment
		err := tx.QueryRow(ctx, `
			SELECT id, invoice_id, amount, method, paid_at, notes, idempotency_key, recorded_by
			FROM payments WHERE idempotency_key = $1
		`, input.IdempotencyKey).Scan(&existing.ID, &existing.InvoiceID, &existing.Amount,
			&existing.Method, &existing.PaidAt, &existing.Notes, &existing.IdempotencyKey,
			&existing.RecordedBy)
		if err == nil {
			if existing.InvoiceID != input.InvoiceID {
				return nil, fmt.Errorf("idempotency key already used for invoice %d: %w",
					existing.InvoiceID, ErrConstraintViolation)
			}
			return &existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	switch status {
	case InvoiceStatusVoid:
		return nil, fmt.Errorf("cannot record payment on a void invoice: %w", ErrInvalidStateTransition)
	case InvoiceStatusPaid:
		return nil, fmt.Errorf("invoice is already fully paid: %w", ErrInvalidStateTransition)
	}

	var p Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, amount, method, notes, idempotency_key, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, invoice_id, amount, method, paid_at, notes, idempotency_key, recorded_by
	`, input.InvoiceID, input.Amount, method, nullable(input.Notes),
		nullable(input.IdempotencyKey), input.RecordedBy,
	).Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt, &p.Notes,
		&p.IdempotencyKey, &p.RecordedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	t, err := s.recomputeStatusTx(ctx, tx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	p.Applied = t.RefundableAmount(p.ID)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return &p, nil
}

// recomputeStatusTx replays the invoice's history inside the caller's TX and
// persists the derived status. Void invoices are never touched here.
func (s *billingService) recomputeStatusTx(ctx context.Context, tx pgx.Tx, invoiceID int) (*InvoiceTotals, error) {
	var discount decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT discount FROM invoices WHERE id = $1", invoiceID,
	).Scan(&discount); err != nil {
		return nil, fmt.Errorf("failed to fetch invoice discount: %w", err)
	}

	rows, err := tx.Query(ctx,
		"SELECT id, invoice_id, line_number, quantity, unit_price, discount FROM invoice_lines WHERE invoice_id = $1",
		invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.LineNumber, &l.Quantity, &l.UnitPrice, &l.Discount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice lines: %w", err)
	}

	payments, refunds, err := paymentHistory(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}

	total := InvoiceTotal(lines, discount)
	t := ComputeTotals(total, payments, refunds)
	if _, err := tx.Exec(ctx,
		"UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> $3",
		t.Status, invoiceID, InvoiceStatusVoid,
	); err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}
	return &t, nil
}

// ── Refunds ───────────────────────────────────────────────────────────────────

func (s *billingService) IssueRefund(ctx context.Context, input RefundInput) (*Refund, error) {
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, fmt.Errorf("refund amount must be positive, got %s: %w", input.Amount, ErrConstraintViolation)
	}
	method := input.Method
	if method == "" {
		method = PaymentMethodBank
	}
	if !paymentMethods[method] {
		return nil, fmt.Errorf("unknown refund method %q: %w", input.Method, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceID int
	if err := tx.QueryRow(ctx,
		"SELECT invoice_id FROM payments WHERE id = $1",
		input.PaymentID,
	).Scan(&invoiceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", input.PaymentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve payment: %w", err)
	}

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM invoices WHERE id = $1 FOR UPDATE",
		invoiceID,
	).Scan(&status); err != nil {
		return nil, fmt.Errorf("failed to lock invoice: %w", err)
	}
	if status == InvoiceStatusVoid {
		return nil, fmt.Errorf("cannot refund a payment on a void invoice: %w", ErrInvalidStateTransition)
	}

	if input.IdempotencyKey != "" {
		var existing Refund
		err := tx.QueryRow(ctx, `
			SELECT id, payment_id, amount, method, refunded_at, notes, idempotency_key, recorded_by
			FROM refunds WHERE idempotency_key = $1
		`, input.IdempotencyKey).Scan(&existing.ID, &existing.PaymentID, &existing.Amount,
			&existing.Method, &existing.RefundedAt, &existing.Notes, &existing.IdempotencyKey,
			&existing.RecordedBy)
		if err == nil {
			if existing.PaymentID != input.PaymentID {
				return nil, fmt.Errorf("idempotency key already used for payment %d: %w",
					existing.PaymentID, ErrConstraintViolation)
			}
			return &existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	// Cap the refund at the portion of this payment still applied.
	payments, refunds, err := paymentHistory(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	var discount decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT discount FROM invoices WHERE id = $1", invoiceID,
	).Scan(&discount); err != nil {
		return nil, fmt.Errorf("failed to fetch invoice discount: %w", err)
	}
	lineRows, err := tx.Query(ctx,
		"SELECT quantity, unit_price, discount FROM invoice_lines WHERE invoice_id = $1",
		invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	var lines []InvoiceLine
	for lineRows.Next() {
		var l InvoiceLine
		if err := lineRows.Scan(&l.Quantity, &l.UnitPrice, &l.Discount); err != nil {
			lineRows.Close()
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	lineRows.Close()
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice lines: %w", err)
	}

	t := ComputeTotals(InvoiceTotal(lines, discount), payments, refunds)
	refundable := t.RefundableAmount(input.PaymentID)
	if input.Amount.GreaterThan(refundable) {
		return nil, fmt.Errorf("refund of %s exceeds refundable %s on payment %d: %w",
			input.Amount, refundable, input.PaymentID, ErrExcessiveRefund)
	}

	var r Refund
	err = tx.QueryRow(ctx, `
		INSERT INTO refunds (payment_id, amount, method, notes, idempotency_key, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, payment_id, amount, method, refunded_at, notes, idempotency_key, recorded_by
	`, input.PaymentID, input.Amount, method, nullable(input.Notes),
		nullable(input.IdempotencyKey), input.RecordedBy,
	).Scan(&r.ID, &r.PaymentID, &r.Amount, &r.Method, &r.RefundedAt, &r.Notes,
		&r.IdempotencyKey, &r.RecordedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert refund: %w", err)
	}

	if _, err := s.recomputeStatusTx(ctx, tx, invoiceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	return &r, nil
}

// ── Voiding ───────────────────────────────────────────────────────────────────

func (s *billingService) VoidInvoice(ctx context.Context, invoiceID int, actorID *int, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM invoices WHERE id = $1 FOR UPDATE",
		invoiceID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return fmt.Errorf("failed to lock invoice: %w", err)
	}
	if status == InvoiceStatusVoid {
		return fmt.Errorf("invoice %d is already void: %w", invoiceID, ErrInvalidStateTransition)
	}

	var paymentCount int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM payments WHERE invoice_id = $1",
		invoiceID,
	).Scan(&paymentCount); err != nil {
		return fmt.Errorf("failed to count payments: %w", err)
	}
	if paymentCount > 0 {
		return fmt.Errorf("invoice %d has %d payment(s); refund them before voiding: %w",
			invoiceID, paymentCount, ErrInvalidStateTransition)
	}

	// Restore the stock the invoice consumed at creation.
	rows, err := tx.Query(ctx, `
		SELECT il.product_id, il.quantity
		FROM invoice_lines il
		JOIN products p ON p.id = il.product_id
		WHERE il.invoice_id = $1 AND p.is_stockable
		ORDER BY il.product_id
	`, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to query stockable lines: %w", err)
	}
	type restoreLine struct {
		productID int
		qty       int
	}
	var restores []restoreLine
	for rows.Next() {
		var r restoreLine
		if err := rows.Scan(&r.productID, &r.qty); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan stockable line: %w", err)
		}
		restores = append(restores, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating stockable lines: %w", err)
	}
	for _, r := range restores {
		if err := s.inventory.RestockTx(ctx, tx, r.productID, r.qty); err != nil {
			return err
		}
	}

	note := "Voided"
	if reason != "" {
		note = "Voided: " + reason
	}
	if _, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1,
		    notes = TRIM(BOTH E'\n' FROM COALESCE(notes, '') || E'\n' || $2),
		    updated_at = NOW()
		WHERE id = $3
	`, InvoiceStatusVoid, note, invoiceID); err != nil {
		return fmt.Errorf("failed to void invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit void: %w", err)
	}
	return nil
}

// ── Balances ──────────────────────────────────────────────────────────────────

// patientBalancePage bounds each invoice page when replaying a patient's
// history. Overridable in tests.
var patientBalancePage = 500

func (s *billingService) PatientBalance(ctx context.Context, patientID int) (decimal.Decimal, error) {
	// Page through the patient's full history; a fixed limit would silently
	// undercount long-standing patients.
	var balance decimal.Decimal
	for offset := 0; ; offset += patientBalancePage {
		invoices, err := s.ListInvoices(ctx, InvoiceFilter{PatientID: patientID, Limit: patientBalancePage, Offset: offset})
		if err != nil {
			return decimal.Zero, err
		}
		for _, inv := range invoices {
			if inv.Status == InvoiceStatusVoid {
				continue
			}
			balance = balance.Add(inv.Balance)
		}
		if len(invoices) < patientBalancePage {
			return balance, nil
		}
	}
}
