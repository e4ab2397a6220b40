package core_test

import (
	"testing"
	"time"

	"clinic-billing/internal/core"

	"github.com/shopspring/decimal"
)

func TestReporting_RevenueSummary(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()
	reporting := core.NewReportingService(pool, billSvc)

	a := flatInvoice(t, ctx, billSvc, "100.00")
	flatInvoice(t, ctx, billSvc, "50.00")

	p, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: a.ID, Amount: decimal.NewFromInt(60), Method: core.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if _, err := billSvc.IssueRefund(ctx, core.RefundInput{
		PaymentID: p.ID, Amount: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("IssueRefund failed: %v", err)
	}

	// Voided invoices drop out of the billed figure.
	voided := flatInvoice(t, ctx, billSvc, "30.00")
	if err := billSvc.VoidInvoice(ctx, voided.ID, nil, "duplicate entry"); err != nil {
		t.Fatalf("VoidInvoice failed: %v", err)
	}

	summary, err := reporting.GetRevenueSummary(ctx, "", "")
	if err != nil {
		t.Fatalf("GetRevenueSummary failed: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	if summary.From != today || summary.To != today {
		t.Errorf("Expected default range %s..%s, got %s..%s", today, today, summary.From, summary.To)
	}
	if summary.InvoiceCount != 2 {
		t.Errorf("Expected 2 invoices, got %d", summary.InvoiceCount)
	}
	if !summary.Billed.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected billed 150, got %s", summary.Billed)
	}
	if !summary.Collected.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected collected 60, got %s", summary.Collected)
	}
	if !summary.Refunded.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected refunded 10, got %s", summary.Refunded)
	}
	if !summary.Net.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected net 50, got %s", summary.Net)
	}
}

func TestReporting_OutstandingInvoices(t *testing.T) {
	pool, billSvc, _, ctx := setupBillingTestDB(t)
	defer pool.Close()
	reporting := core.NewReportingService(pool, billSvc)

	paid := flatInvoice(t, ctx, billSvc, "100.00")
	if _, err := billSvc.RecordPayment(ctx, core.PaymentInput{
		InvoiceID: paid.ID, Amount: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	overdueDate := "2020-01-01"
	overdue, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID: 102,
		DueDate:   &overdueDate,
		Lines:     []core.InvoiceLineInput{{Description: "Crown prep", Quantity: 1, UnitPrice: decPtr("50.00")}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	current := flatInvoice(t, ctx, billSvc, "80.00")

	outstanding, err := reporting.GetOutstandingInvoices(ctx)
	if err != nil {
		t.Fatalf("GetOutstandingInvoices failed: %v", err)
	}
	if len(outstanding) != 2 {
		t.Fatalf("Expected 2 outstanding invoices, got %d", len(outstanding))
	}

	byID := map[int]core.OutstandingInvoice{}
	for _, o := range outstanding {
		byID[o.InvoiceID] = o
	}
	if o, ok := byID[overdue.ID]; !ok {
		t.Errorf("Expected invoice %d in the report", overdue.ID)
	} else {
		if !o.Overdue {
			t.Errorf("Expected invoice %d to be overdue", overdue.ID)
		}
		if !o.Balance.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Expected balance 50, got %s", o.Balance)
		}
	}
	if o, ok := byID[current.ID]; ok && o.Overdue {
		t.Errorf("Invoice %d has no past due date, must not be overdue", current.ID)
	}
	if _, ok := byID[paid.ID]; ok {
		t.Errorf("Paid invoice %d must not appear in the report", paid.ID)
	}
}

func TestReporting_SupplierBalances(t *testing.T) {
	pool, poSvc, ctx := setupPurchasingTestDB(t)
	defer pool.Close()
	billSvc := core.NewBillingService(pool, core.NewInventoryService(pool))
	reporting := core.NewReportingService(pool, billSvc)

	po := standardPO(t, ctx, poSvc) // 10*800 + 20*250 = 13000 from supplier 1
	if _, err := poSvc.ReceivePO(ctx, po.ID, nil); err != nil {
		t.Fatalf("ReceivePO failed: %v", err)
	}
	if _, err := poSvc.RecordSupplierPayment(ctx, core.SupplierPaymentInput{
		POID: po.ID, Amount: decimal.NewFromInt(5000), Method: core.PaymentMethodBank,
	}); err != nil {
		t.Fatalf("RecordSupplierPayment failed: %v", err)
	}

	balances, err := reporting.GetSupplierBalances(ctx)
	if err != nil {
		t.Fatalf("GetSupplierBalances failed: %v", err)
	}

	var got *core.SupplierBalance
	for i := range balances {
		if balances[i].SupplierID == 1 {
			got = &balances[i]
		}
	}
	if got == nil {
		t.Fatal("Expected a balance row for supplier 1")
	}
	if !got.OrderedValue.Equal(decimal.NewFromInt(13000)) {
		t.Errorf("Expected ordered value 13000, got %s", got.OrderedValue)
	}
	if !got.Paid.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Expected paid 5000, got %s", got.Paid)
	}
	if !got.BalanceDue.Equal(decimal.NewFromInt(8000)) {
		t.Errorf("Expected balance due 8000, got %s", got.BalanceDue)
	}
}
