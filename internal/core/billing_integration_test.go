package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"clinic-billing/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed. RESTART IDENTITY makes the insert order below the
	// entity IDs the tests refer to (products 1..3, services 1..2, etc).
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE refunds, payments, invoice_lines, invoices, invoice_sequences,
			stock_adjustments, credit_applications, supplier_credits, supplier_refunds,
			supplier_payments, purchase_return_lines, purchase_returns,
			purchase_order_lines, purchase_orders, services, products, suppliers, users
			RESTART IDENTITY CASCADE;

		INSERT INTO suppliers (name, category, phone) VALUES
		('Dental Depot',  'pharmaceutical',    '+91-9800000001'),
		('City Supplies', 'local_distributor', '+91-9800000002');

		INSERT INTO products (name, category, unit_price, quantity_on_hand, low_stock_threshold, is_stockable) VALUES
		('Composite Resin Syringe', 'restorative', 850.00, 20, 5,  true),
		('Latex Gloves (box)',      'disposables', 300.00, 50, 10, true),
		('Lab Shipping Fee',        'misc',        150.00, 0,  0,  false);

		INSERT INTO services (name, price) VALUES
		('Root Canal Treatment', 4500.00),
		('Scaling and Polishing', 1200.00);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func setupBillingTestDB(t *testing.T) (*pgxpool.Pool, core.BillingService, core.InventoryService, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	invSvc := core.NewInventoryService(pool)
	billSvc := core.NewBillingService(pool, invSvc)
	return pool, billSvc, invSvc, context.Background()
}

// onHand fetches a product's current stock directly.
func onHand(t *testing.T, ctx context.Context, pool *pgxpool.Pool, productID int) int {
	t.Helper()
	var qty int
	if err := pool.QueryRow(ctx,
		"SELECT quantity_on_hand FROM products WHERE id = $1", productID,
	).Scan(&qty); err != nil {
		t.Fatalf("Failed to fetch stock for product %d: %v", productID, err)
	}
	return qty
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &v
}

// flatInvoice creates a one-line free-text invoice for the given amount so
// payment tests work with round numbers.
func flatInvoice(t *testing.T, ctx context.Context, billSvc core.BillingService, amount string) *core.Invoice {
	t.Helper()
	inv, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID: 101,
		Lines: []core.InvoiceLineInput{
			{Description: "Consultation", Quantity: 1, UnitPrice: decPtr(amount)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	return inv
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestBilling_CreateInvoiceConsumesStock(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID: 101,
		DoctorID:  intPtr(7),
		Lines: []core.InvoiceLineInput{
			{ServiceID: intPtr(1), Quantity: 1},                // Root Canal @ 4500
			{ProductID: intPtr(1), Quantity: 2},                // Composite Resin @ 850, stock 20 → 18
			{ProductID: intPtr(3), Quantity: 1},                // Lab fee, non-stockable
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	if inv.Status != core.InvoiceStatusOpen {
		t.Errorf("Expected open, got %s", inv.Status)
	}
	wantTotal := decimal.NewFromFloat(4500 + 2*850 + 150)
	if !inv.Total.Equal(wantTotal) {
		t.Errorf("Expected total %s, got %s", wantTotal, inv.Total)
	}
	if !inv.Balance.Equal(wantTotal) {
		t.Errorf("Expected balance %s, got %s", wantTotal, inv.Balance)
	}

	wantPrefix := fmt.Sprintf("INV-%s-", time.Now().Format("060102"))
	if inv.InvoiceNumber != wantPrefix+"0001" {
		t.Errorf("Expected invoice number %s0001, got %s", wantPrefix, inv.InvoiceNumber)
	}

	if got := onHand(t, ctx, pool, 1); got != 18 {
		t.Errorf("Expected product 1 stock 18, got %d", got)
	}
	// Non-stockable lines never move stock.
	if got := onHand(t, ctx, pool, 3); got != 0 {
		t.Errorf("Expected product 3 stock 0, got %d", got)
	}

	// Line descriptions default to catalog names.
	if inv.Lines[0].Description != "Root Canal Treatment" {
		t.Errorf("Expected catalog description, got %q", inv.Lines[0].Description)
	}
}

func TestBilling_GaplessNumbering(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	for i := 1; i <= 3; i++ {
		inv := flatInvoice(t, ctx, billSvc, "100.00")
		want := fmt.Sprintf("INV-%s-%04d", time.Now().Format("060102"), i)
		if inv.InvoiceNumber != want {
			t.Errorf("Expected %s, got %s", want, inv.InvoiceNumber)
		}
	}
}

func TestBilling_InsufficientStockRejectsWholeInvoice(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	_, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID: 101,
		Lines: []core.InvoiceLineInput{
			{ProductID: intPtr(2), Quantity: 10}, // gloves: fine
			{ProductID: intPtr(1), Quantity: 21}, // resin: only 20 on hand
		},
	})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	// The rejected invoice must leave no trace: no header, no stock moved.
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices").Scan(&count); err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no invoices, got %d", count)
	}
	if got := onHand(t, ctx, pool, 2); got != 50 {
		t.Errorf("Expected gloves stock unchanged at 50, got %d", got)
	}
}

func TestBilling_PaymentLifecycle(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv := flatInvoice(t, ctx, billSvc, "100.00")

	// Pay 60 → partially paid, balance 40.
	p1, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(60), Method: core.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("First RecordPayment failed: %v", err)
	}
	got, err := billSvc.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if got.Status != core.InvoiceStatusPartiallyPaid {
		t.Errorf("Expected partially_paid, got %s", got.Status)
	}
	if !got.Balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected balance 40, got %s", got.Balance)
	}

	// Pay 40 → paid, balance 0.
	p2, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(40), Method: core.PaymentMethodUPI,
	})
	if err != nil {
		t.Fatalf("Second RecordPayment failed: %v", err)
	}
	got, _ = billSvc.GetInvoice(ctx, inv.ID)
	if got.Status != core.InvoiceStatusPaid {
		t.Errorf("Expected paid, got %s", got.Status)
	}

	// Refund 25 from the second payment → balance reopens to 25.
	_, err = billSvc.IssueRefund(ctx, core.RefundInput{
		PaymentID: p2.ID, Amount: decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("IssueRefund failed: %v", err)
	}
	got, _ = billSvc.GetInvoice(ctx, inv.ID)
	if got.Status != core.InvoiceStatusPartiallyPaid {
		t.Errorf("Expected partially_paid after refund, got %s", got.Status)
	}
	if !got.Balance.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected balance 25, got %s", got.Balance)
	}
	if !got.AmountPaid.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected applied 75, got %s", got.AmountPaid)
	}

	// Only 15 remains applied on payment 2; refunding 20 must fail and
	// change nothing.
	_, err = billSvc.IssueRefund(ctx, core.RefundInput{
		PaymentID: p2.ID, Amount: decimal.NewFromInt(20),
	})
	if !errors.Is(err, core.ErrExcessiveRefund) {
		t.Fatalf("Expected ErrExcessiveRefund, got %v", err)
	}
	after, _ := billSvc.GetInvoice(ctx, inv.ID)
	if !after.Balance.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Failed refund must not change balance, got %s", after.Balance)
	}

	// The first payment is still fully refundable.
	payments, err := billSvc.ListPayments(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	for _, p := range payments {
		if p.ID == p1.ID && !p.Applied.Equal(decimal.NewFromInt(60)) {
			t.Errorf("Expected payment 1 applied 60, got %s", p.Applied)
		}
	}
}

func TestBilling_OverpaymentBecomesCredit(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv := flatInvoice(t, ctx, billSvc, "100.00")

	_, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(120),
	})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	got, _ := billSvc.GetInvoice(ctx, inv.ID)
	if got.Status != core.InvoiceStatusPaid {
		t.Errorf("Expected paid, got %s", got.Status)
	}
	if !got.Credit.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected credit 20, got %s", got.Credit)
	}
	if !got.Balance.IsZero() {
		t.Errorf("Expected balance 0, got %s", got.Balance)
	}

	// A paid invoice takes no further payments.
	_, err = billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(10),
	})
	if !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestBilling_PaymentIdempotency(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv := flatInvoice(t, ctx, billSvc, "100.00")
	key := uuid.NewString()

	p1, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(60), IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("First RecordPayment failed: %v", err)
	}

	// Retry with the same key returns the original payment and records
	// nothing new.
	p2, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(60), IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("Retried RecordPayment failed: %v", err)
	}
	if p1.ID != p2.ID {
		t.Errorf("Expected same payment on retry, got %d and %d", p1.ID, p2.ID)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM payments").Scan(&count); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 payment row, got %d", count)
	}

	got, _ := billSvc.GetInvoice(ctx, inv.ID)
	if !got.Balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected balance 40, got %s", got.Balance)
	}

	// The same key cannot be replayed against another invoice.
	other := flatInvoice(t, ctx, billSvc, "50.00")
	_, err = billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: other.ID, Amount: decimal.NewFromInt(50), IdempotencyKey: key,
	})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation, got %v", err)
	}
}

func TestBilling_VoidRestoresStock(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID: 101,
		Lines:     []core.InvoiceLineInput{{ProductID: intPtr(1), Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if got := onHand(t, ctx, pool, 1); got != 15 {
		t.Fatalf("Expected stock 15 after invoicing, got %d", got)
	}

	if err := billSvc.VoidInvoice(ctx, inv.ID, nil, "entry error"); err != nil {
		t.Fatalf("VoidInvoice failed: %v", err)
	}
	if got := onHand(t, ctx, pool, 1); got != 20 {
		t.Errorf("Expected stock restored to 20, got %d", got)
	}

	got, _ := billSvc.GetInvoice(ctx, inv.ID)
	if got.Status != core.InvoiceStatusVoid {
		t.Errorf("Expected void, got %s", got.Status)
	}

	// Void is terminal: no payments, no second void.
	_, err = billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(10),
	})
	if !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition paying void invoice, got %v", err)
	}
	if err := billSvc.VoidInvoice(ctx, inv.ID, nil, ""); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition on double void, got %v", err)
	}
}

func TestBilling_VoidRequiresNoPayments(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv := flatInvoice(t, ctx, billSvc, "100.00")
	if _, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(30),
	}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	err := billSvc.VoidInvoice(ctx, inv.ID, nil, "")
	if !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestBilling_ZeroTotalInvoiceIsPaid(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	inv, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID: 101,
		Discount:  decimal.NewFromInt(100),
		Lines: []core.InvoiceLineInput{
			{Description: "Follow-up visit", Quantity: 1, UnitPrice: decPtr("100.00")},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if inv.Status != core.InvoiceStatusPaid {
		t.Errorf("Expected zero-total invoice to be paid, got %s", inv.Status)
	}
	if !inv.Total.IsZero() {
		t.Errorf("Expected total 0, got %s", inv.Total)
	}
}

func TestBilling_PatientBalance(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	a := flatInvoice(t, ctx, billSvc, "100.00")
	flatInvoice(t, ctx, billSvc, "50.00")
	if _, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: a.ID, Amount: decimal.NewFromInt(60),
	}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	balance, err := billSvc.PatientBalance(ctx, 101)
	if err != nil {
		t.Fatalf("PatientBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected patient balance 90, got %s", balance)
	}
}

// Product row locks must be taken in a deterministic order, otherwise two
// invoices listing the same products in opposite line order can deadlock.
func TestBilling_ConcurrentInvoicesOppositeLineOrders(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()

	mk := func(first, second int) error {
		_, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
			PatientID: 101,
			Lines: []core.InvoiceLineInput{
				{ProductID: intPtr(first), Quantity: 1},
				{ProductID: intPtr(second), Quantity: 1},
			},
		})
		return err
	}

	// Products 1 and 2 start at 20 and 50 on hand; ten rounds of two
	// invoices consume exactly 20 of each.
	for round := 0; round < 10; round++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = mk(1, 2) }()
		go func() { defer wg.Done(); errs[1] = mk(2, 1) }()
		wg.Wait()
		for i, err := range errs {
			if err != nil {
				t.Fatalf("Round %d invoice %d failed: %v", round+1, i+1, err)
			}
		}
	}

	if got := onHand(t, ctx, pool, 1); got != 0 {
		t.Errorf("Expected product 1 stock 0, got %d", got)
	}
	if got := onHand(t, ctx, pool, 2); got != 30 {
		t.Errorf("Expected product 2 stock 30, got %d", got)
	}
}
