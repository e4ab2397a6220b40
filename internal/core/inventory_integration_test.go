package core_test

import (
	"errors"
	"sync"
	"testing"

	"clinic-billing/internal/core"
)

func TestInventory_AdjustmentMovesStock(t *testing.T) {
	pool, _, invSvc, ctx := setupBillingTestDB(t)
	defer pool.Close()

	adj, err := invSvc.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      1,
		AdjustmentType: core.AdjustmentAddition,
		Quantity:       30,
		Reason:         core.AdjustmentReasonInitialStock,
	})
	if err != nil {
		t.Fatalf("Addition failed: %v", err)
	}
	if adj.ID == 0 {
		t.Error("Expected adjustment to be persisted")
	}
	if got := onHand(t, ctx, pool, 1); got != 50 {
		t.Errorf("Expected stock 50, got %d", got)
	}

	if _, err := invSvc.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      1,
		AdjustmentType: core.AdjustmentSubtraction,
		Quantity:       8,
		Reason:         core.AdjustmentReasonDamaged,
		Notes:          "dropped tray",
	}); err != nil {
		t.Fatalf("Subtraction failed: %v", err)
	}
	if got := onHand(t, ctx, pool, 1); got != 42 {
		t.Errorf("Expected stock 42, got %d", got)
	}

	history, err := invSvc.Adjustments(ctx, 1)
	if err != nil {
		t.Fatalf("Adjustments failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 adjustments, got %d", len(history))
	}
}

func TestInventory_SubtractionCannotGoNegative(t *testing.T) {
	pool, _, invSvc, ctx := setupBillingTestDB(t)
	defer pool.Close()

	// Resin has 20 on hand.
	_, err := invSvc.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      1,
		AdjustmentType: core.AdjustmentSubtraction,
		Quantity:       21,
		Reason:         core.AdjustmentReasonStockTake,
	})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	if got := onHand(t, ctx, pool, 1); got != 20 {
		t.Errorf("Failed adjustment must not move stock, got %d", got)
	}

	// Nothing was recorded for the failed attempt.
	history, err := invSvc.Adjustments(ctx, 1)
	if err != nil {
		t.Fatalf("Adjustments failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no adjustments, got %d", len(history))
	}
}

func TestInventory_RejectsUnknownReason(t *testing.T) {
	pool, _, invSvc, ctx := setupBillingTestDB(t)
	defer pool.Close()

	_, err := invSvc.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      1,
		AdjustmentType: core.AdjustmentSubtraction,
		Quantity:       1,
		Reason:         "misplaced",
	})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation, got %v", err)
	}
}

func TestInventory_LowStockReport(t *testing.T) {
	pool, _, invSvc, ctx := setupBillingTestDB(t)
	defer pool.Close()

	// Drain resin to its threshold (20 → 5).
	if _, err := invSvc.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      1,
		AdjustmentType: core.AdjustmentSubtraction,
		Quantity:       15,
		Reason:         core.AdjustmentReasonStockTake,
	}); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	low, err := invSvc.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock failed: %v", err)
	}
	if len(low) != 1 || low[0].ProductID != 1 {
		t.Fatalf("Expected only product 1 low on stock, got %+v", low)
	}
	if !low[0].IsLow {
		t.Error("Expected IsLow to be set")
	}

	levels, err := invSvc.StockLevels(ctx)
	if err != nil {
		t.Fatalf("StockLevels failed: %v", err)
	}
	// Non-stockable products never appear on stock reports.
	for _, sl := range levels {
		if sl.ProductID == 3 {
			t.Errorf("Non-stockable product on stock report: %+v", sl)
		}
	}
}

// Two invoices race for 5 units of stock, each needing 3. Exactly one must
// win; the loser fails with ErrInsufficientStock and stock lands at 2,
// never negative.
func TestInventory_ConcurrentConsumeHasExactlyOneWinner(t *testing.T) {
	pool, billSvc, invSvc, ctx := setupBillingTestDB(t)
	defer pool.Close()

	// Drain resin down to exactly 5 units.
	if _, err := invSvc.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      1,
		AdjustmentType: core.AdjustmentSubtraction,
		Quantity:       15,
		Reason:         core.AdjustmentReasonStockTake,
	}); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := billSvc.CreateInvoice(ctx, core.CreateInvoiceInput{
				PatientID: 200 + slot,
				Lines:     []core.InvoiceLineInput{{ProductID: intPtr(1), Quantity: 3}},
			})
			errs[slot] = err
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, core.ErrInsufficientStock) {
				t.Errorf("Loser must fail with ErrInsufficientStock, got %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("Expected exactly one failure, got %d", failures)
	}
	if got := onHand(t, ctx, pool, 1); got != 2 {
		t.Errorf("Expected stock 2 after the race, got %d", got)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices").Scan(&count); err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one invoice, got %d", count)
	}
}
