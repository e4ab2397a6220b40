package core_test

import (
	"context"
	"errors"
	"testing"

	"clinic-billing/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupPurchasingTestDB(t *testing.T) (*pgxpool.Pool, core.PurchaseOrderService, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	invSvc := core.NewInventoryService(pool)
	poSvc := core.NewPurchaseOrderService(pool, invSvc)
	return pool, poSvc, context.Background()
}

// standardPO orders 10 resin @ 800 and 20 glove boxes @ 250 from supplier 1.
func standardPO(t *testing.T, ctx context.Context, poSvc core.PurchaseOrderService) *core.PurchaseOrder {
	t.Helper()
	po, err := poSvc.CreatePO(ctx, core.CreatePOInput{
		SupplierID: 1,
		Lines: []core.POLineInput{
			{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(800)},
			{ProductID: 2, Quantity: 20, UnitCost: decimal.NewFromInt(250)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	return po
}

func TestPurchaseOrders_ReceiveAddsStock(t *testing.T) {
	pool, poSvc, ctx := setupPurchasingTestDB(t)
	defer pool.Close()

	po := standardPO(t, ctx, poSvc)
	if po.Status != core.POStatusPending {
		t.Errorf("Expected pending, got %s", po.Status)
	}
	if !po.Total.Equal(decimal.NewFromInt(10*800 + 20*250)) {
		t.Errorf("Expected total 13000, got %s", po.Total)
	}

	// Ordering alone must not move stock.
	if got := onHand(t, ctx, pool, 1); got != 20 {
		t.Fatalf("Expected stock untouched at 20, got %d", got)
	}

	po, err := poSvc.ReceivePO(ctx, po.ID, nil)
	if err != nil {
		t.Fatalf("ReceivePO failed: %v", err)
	}
	if po.Status != core.POStatusReceived {
		t.Errorf("Expected received, got %s", po.Status)
	}
	if po.ReceivedAt == nil {
		t.Error("Expected received_at timestamp")
	}
	if got := onHand(t, ctx, pool, 1); got != 30 {
		t.Errorf("Expected stock 30, got %d", got)
	}
	if got := onHand(t, ctx, pool, 2); got != 70 {
		t.Errorf("Expected stock 70, got %d", got)
	}

	// Receiving twice is not a legal transition.
	if _, err := poSvc.ReceivePO(ctx, po.ID, nil); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition on double receive, got %v", err)
	}
}

func TestPurchaseOrders_CancelOnlyWhilePending(t *testing.T) {
	pool, poSvc, ctx := setupPurchasingTestDB(t)
	defer pool.Close()

	po := standardPO(t, ctx, poSvc)
	if err := poSvc.CancelPO(ctx, po.ID); err != nil {
		t.Fatalf("CancelPO failed: %v", err)
	}
	got, _ := poSvc.GetPO(ctx, po.ID)
	if got.Status != core.POStatusCancelled {
		t.Errorf("Expected cancelled, got %s", got.Status)
	}
	if _, err := poSvc.ReceivePO(ctx, po.ID, nil); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition receiving cancelled PO, got %v", err)
	}

	other := standardPO(t, ctx, poSvc)
	if _, err := poSvc.ReceivePO(ctx, other.ID, nil); err != nil {
		t.Fatalf("ReceivePO failed: %v", err)
	}
	if err := poSvc.CancelPO(ctx, other.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition cancelling received PO, got %v", err)
	}
}

func TestPurchaseOrders_ReturnCapsAndStatus(t *testing.T) {
	pool, poSvc, ctx := setupPurchasingTestDB(t)
	defer pool.Close()

	po := standardPO(t, ctx, poSvc)
	po, err := poSvc.ReceivePO(ctx, po.ID, nil)
	if err != nil {
		t.Fatalf("ReceivePO failed: %v", err)
	}
	resinLine := po.Lines[0]
	gloveLine := po.Lines[1]

	// Return 4 of 10 resin → partially returned, stock drops.
	ret, err := poSvc.ReturnStock(ctx, core.ReturnStockInput{
		POID:   po.ID,
		Reason: "damaged in transit",
		Lines:  []core.ReturnLineInput{{POLineID: resinLine.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("ReturnStock failed: %v", err)
	}
	if !ret.Value.Equal(decimal.NewFromInt(4 * 800)) {
		t.Errorf("Expected return value 3200, got %s", ret.Value)
	}
	got, _ := poSvc.GetPO(ctx, po.ID)
	if got.Status != core.POStatusPartiallyReturned {
		t.Errorf("Expected partially_returned, got %s", got.Status)
	}
	if stock := onHand(t, ctx, pool, 1); stock != 26 {
		t.Errorf("Expected stock 26, got %d", stock)
	}

	// Only 6 remain returnable; 7 must fail atomically.
	_, err = poSvc.ReturnStock(ctx, core.ReturnStockInput{
		POID:  po.ID,
		Lines: []core.ReturnLineInput{{POLineID: resinLine.ID, Quantity: 7}},
	})
	if !errors.Is(err, core.ErrOverReturn) {
		t.Fatalf("Expected ErrOverReturn, got %v", err)
	}
	if stock := onHand(t, ctx, pool, 1); stock != 26 {
		t.Errorf("Failed return must not move stock, got %d", stock)
	}

	// Returning everything left flips the order to returned.
	_, err = poSvc.ReturnStock(ctx, core.ReturnStockInput{
		POID: po.ID,
		Lines: []core.ReturnLineInput{
			{POLineID: resinLine.ID, Quantity: 6},
			{POLineID: gloveLine.ID, Quantity: 20},
		},
	})
	if err != nil {
		t.Fatalf("Final ReturnStock failed: %v", err)
	}
	got, _ = poSvc.GetPO(ctx, po.ID)
	if got.Status != core.POStatusReturned {
		t.Errorf("Expected returned, got %s", got.Status)
	}
}

func TestPurchaseOrders_ReturnRequiresReceipt(t *testing.T) {
	pool, poSvc, ctx := setupPurchasingTestDB(t)
	defer pool.Close()

	po := standardPO(t, ctx, poSvc)
	_, err := poSvc.ReturnStock(ctx, core.ReturnStockInput{
		POID:  po.ID,
		Lines: []core.ReturnLineInput{{POLineID: po.Lines[0].ID, Quantity: 1}},
	})
	if !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestPurchaseOrders_SupplierMoneyFlow(t *testing.T) {
	pool, poSvc, ctx := setupPurchasingTestDB(t)
	defer pool.Close()

	po := standardPO(t, ctx, poSvc) // total 13000
	po, err := poSvc.ReceivePO(ctx, po.ID, nil)
	if err != nil {
		t.Fatalf("ReceivePO failed: %v", err)
	}

	// Pay the full balance; a second payment has nothing left to cover.
	if _, err := poSvc.RecordSupplierPayment(ctx, core.SupplierPaymentInput{
		POID: po.ID, Amount: decimal.NewFromInt(13000),
	}); err != nil {
		t.Fatalf("RecordSupplierPayment failed: %v", err)
	}
	_, err = poSvc.RecordSupplierPayment(ctx, core.SupplierPaymentInput{
		POID: po.ID, Amount: decimal.NewFromInt(1),
	})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation overpaying supplier, got %v", err)
	}

	// Send back 4 resin (value 3200) and collect the supplier's refund.
	ret, err := poSvc.ReturnStock(ctx, core.ReturnStockInput{
		POID:  po.ID,
		Lines: []core.ReturnLineInput{{POLineID: po.Lines[0].ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("ReturnStock failed: %v", err)
	}

	// Refund above the return's value is rejected.
	_, _, err = poSvc.RecordSupplierRefund(ctx, core.SupplierRefundInput{
		ReturnID: ret.ID, Amount: decimal.NewFromInt(3300),
	})
	if !errors.Is(err, core.ErrExcessiveRefund) {
		t.Fatalf("Expected ErrExcessiveRefund, got %v", err)
	}

	refund, credit, err := poSvc.RecordSupplierRefund(ctx, core.SupplierRefundInput{
		ReturnID: ret.ID, Amount: decimal.NewFromInt(3200),
	})
	if err != nil {
		t.Fatalf("RecordSupplierRefund failed: %v", err)
	}
	if !credit.Balance.Equal(refund.Amount) {
		t.Errorf("Expected credit balance %s, got %s", refund.Amount, credit.Balance)
	}
	if credit.SupplierID != 1 {
		t.Errorf("Expected credit for supplier 1, got %d", credit.SupplierID)
	}

	// Spend the credit on a fresh order with the same supplier.
	next, err := poSvc.CreatePO(ctx, core.CreatePOInput{
		SupplierID: 1,
		Lines:      []core.POLineInput{{ProductID: 2, Quantity: 10, UnitCost: decimal.NewFromInt(250)}},
	})
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}

	// More than the order owes is rejected, as is more than the credit holds.
	_, err = poSvc.ApplyCredit(ctx, core.ApplyCreditInput{
		CreditID: credit.ID, POID: next.ID, Amount: decimal.NewFromInt(2600),
	})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation over balance due, got %v", err)
	}

	app, err := poSvc.ApplyCredit(ctx, core.ApplyCreditInput{
		CreditID: credit.ID, POID: next.ID, Amount: decimal.NewFromInt(2500),
	})
	if err != nil {
		t.Fatalf("ApplyCredit failed: %v", err)
	}
	if !app.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected application 2500, got %s", app.Amount)
	}

	nextPO, _ := poSvc.GetPO(ctx, next.ID)
	if !nextPO.BalanceDue.IsZero() {
		t.Errorf("Expected balance due 0 after credit, got %s", nextPO.BalanceDue)
	}

	credits, err := poSvc.GetSupplierCredits(ctx, 1, true)
	if err != nil {
		t.Fatalf("GetSupplierCredits failed: %v", err)
	}
	if len(credits) != 1 || !credits[0].Balance.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("Expected one open credit with balance 700, got %+v", credits)
	}

	// A credit from supplier 1 cannot pay supplier 2's order.
	foreign, err := poSvc.CreatePO(ctx, core.CreatePOInput{
		SupplierID: 2,
		Lines:      []core.POLineInput{{ProductID: 1, Quantity: 1, UnitCost: decimal.NewFromInt(800)}},
	})
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	_, err = poSvc.ApplyCredit(ctx, core.ApplyCreditInput{
		CreditID: credit.ID, POID: foreign.ID, Amount: decimal.NewFromInt(100),
	})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation across suppliers, got %v", err)
	}
}
