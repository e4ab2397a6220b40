package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Stock adjustment reasons, matching the stock_adjustments check constraint.
const (
	AdjustmentReasonDamaged      = "damaged"
	AdjustmentReasonExpired      = "expired"
	AdjustmentReasonStockTake    = "stock_take"
	AdjustmentReasonInitialStock = "initial_stock"
	AdjustmentReasonOther        = "other"
)

// Adjustment directions.
const (
	AdjustmentAddition    = "addition"
	AdjustmentSubtraction = "subtraction"
)

// StockLevel is a read view of a product's stock position.
type StockLevel struct {
	ProductID         int
	ProductName       string
	Category          string
	QuantityOnHand    int
	LowStockThreshold int
	IsLow             bool
}

// StockAdjustment is a manual correction to a product's on-hand quantity,
// recorded with a reason for the audit trail.
type StockAdjustment struct {
	ID             int
	ProductID      int
	ProductName    string
	AdjustmentType string
	Quantity       int
	Reason         string
	Notes          *string
	AdjustedAt     time.Time
	AdjustedBy     *int
}

// StockAdjustmentInput holds the fields required to record an adjustment.
type StockAdjustmentInput struct {
	ProductID      int
	AdjustmentType string
	Quantity       int
	Reason         string
	Notes          string
	AdjustedBy     *int
}

// InventoryService maintains product stock levels. All mutations keep the
// invariant that quantity_on_hand never goes below zero: decrements are
// conditional updates, so under concurrency exactly the requests that fit
// the available stock succeed.
type InventoryService interface {
	// StockLevels returns the stock position of every active stockable product.
	StockLevels(ctx context.Context) ([]StockLevel, error)

	// LowStock returns active stockable products at or below their
	// low-stock threshold.
	LowStock(ctx context.Context) ([]StockLevel, error)

	// Adjust records a manual stock correction. Subtractions that would
	// drive stock negative fail with ErrInsufficientStock.
	Adjust(ctx context.Context, input StockAdjustmentInput) (*StockAdjustment, error)

	// Adjustments returns the adjustment history, optionally filtered by
	// product (0 = all products).
	Adjustments(ctx context.Context, productID int) ([]StockAdjustment, error)

	// TX-scoped operations: work within a caller-provided transaction so
	// stock movements commit atomically with the document that caused them.

	// ConsumeTx decrements stock for a stockable product. Returns
	// ErrInsufficientStock if fewer than qty units are on hand; the
	// decrement is conditional, so concurrent consumers cannot drive the
	// quantity negative.
	ConsumeTx(ctx context.Context, tx pgx.Tx, productID, qty int) error

	// RestockTx increments stock, used for goods receipts and for
	// restoring stock when an invoice is voided.
	RestockTx(ctx context.Context, tx pgx.Tx, productID, qty int) error

	// DeductTx decrements stock for goods going back to a supplier.
	// Like ConsumeTx it fails with ErrInsufficientStock rather than going
	// negative.
	DeductTx(ctx context.Context, tx pgx.Tx, productID, qty int) error
}
