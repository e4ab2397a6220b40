package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order statuses. A PO starts pending, is received all at once,
// and may then be partially or fully returned. Cancellation is only legal
// while pending.
const (
	POStatusPending           = "pending"
	POStatusReceived          = "received"
	POStatusPartiallyReturned = "partially_returned"
	POStatusReturned          = "returned"
	POStatusCancelled         = "cancelled"
)

// PurchaseOrder represents an order placed with a supplier.
type PurchaseOrder struct {
	ID           int
	SupplierID   int
	SupplierName string
	Status       string
	OrderDate    time.Time
	ReceivedAt   *time.Time
	Notes        *string
	CreatedBy    *int
	CreatedAt    time.Time
	Lines        []PurchaseOrderLine

	// Derived financials.
	Total         decimal.Decimal // sum of line quantity * unit cost
	ReturnedValue decimal.Decimal // value of goods sent back
	AmountPaid    decimal.Decimal // supplier payments
	CreditApplied decimal.Decimal // credit applications
	BalanceDue    decimal.Decimal
}

// PurchaseOrderLine is one product position on a purchase order.
// QuantityReturned accumulates across returns and never exceeds Quantity.
type PurchaseOrderLine struct {
	ID               int
	POID             int
	LineNumber       int
	ProductID        int
	ProductName      string
	Quantity         int
	UnitCost         decimal.Decimal
	QuantityReturned int
	LineTotal        decimal.Decimal
}

// PurchaseReturn records goods sent back to the supplier from a received PO.
type PurchaseReturn struct {
	ID         int
	POID       int
	Reason     *string
	ReturnDate time.Time
	CreatedBy  *int
	Lines      []PurchaseReturnLine
	Value      decimal.Decimal // derived from lines at their PO unit cost
}

// PurchaseReturnLine is one returned position, referencing the PO line it
// reverses.
type PurchaseReturnLine struct {
	ID       int
	ReturnID int
	POLineID int
	Quantity int
}

// SupplierPayment is money paid out against a purchase order.
type SupplierPayment struct {
	ID         int
	POID       int
	Amount     decimal.Decimal
	Method     string
	PaidAt     time.Time
	Notes      *string
	RecordedBy *int
}

// SupplierRefund is money received back from a supplier for a return.
// Each refund issues a SupplierCredit for the same amount.
type SupplierRefund struct {
	ID         int
	ReturnID   int
	Amount     decimal.Decimal
	RefundedAt time.Time
	Notes      *string
	RecordedBy *int
}

// SupplierCredit is spendable balance with a supplier, issued from a refund
// and consumed by applying it to later purchase orders.
type SupplierCredit struct {
	ID             int
	SupplierID     int
	SourceRefundID int
	InitialAmount  decimal.Decimal
	Balance        decimal.Decimal
	IsFullyUsed    bool
	IssuedAt       time.Time
	Notes          *string
}

// CreditApplication records spending part of a credit on a purchase order.
type CreditApplication struct {
	ID        int
	CreditID  int
	POID      int
	Amount    decimal.Decimal
	AppliedAt time.Time
}

// POLineInput holds the fields required to create a purchase order line.
type POLineInput struct {
	ProductID int
	Quantity  int
	UnitCost  decimal.Decimal
}

// CreatePOInput holds the fields required to create a purchase order.
type CreatePOInput struct {
	SupplierID int
	Notes      string
	Lines      []POLineInput
	CreatedBy  *int
}

// ReturnLineInput identifies a PO line and how many units go back.
type ReturnLineInput struct {
	POLineID int
	Quantity int
}

// ReturnStockInput holds the fields required to record a supplier return.
type ReturnStockInput struct {
	POID      int
	Reason    string
	Lines     []ReturnLineInput
	CreatedBy *int
}

// SupplierPaymentInput holds the fields required to pay a supplier.
type SupplierPaymentInput struct {
	POID       int
	Amount     decimal.Decimal
	Method     string
	Notes      string
	RecordedBy *int
}

// SupplierRefundInput holds the fields required to record a supplier refund.
type SupplierRefundInput struct {
	ReturnID   int
	Amount     decimal.Decimal
	Notes      string
	RecordedBy *int
}

// ApplyCreditInput holds the fields required to spend supplier credit on a PO.
type ApplyCreditInput struct {
	CreditID int
	POID     int
	Amount   decimal.Decimal
}

// POFilter narrows GetPOs. Zero values mean "no filter".
type POFilter struct {
	SupplierID int
	Status     string
	Limit      int
	Offset     int
}

// PurchaseOrderService provides the purchasing lifecycle: ordering,
// receiving into stock, returning to the supplier, and the money flows
// with the supplier (payments, refunds, credits).
type PurchaseOrderService interface {
	// CreatePO creates a pending purchase order. Stock is untouched until
	// the order is received.
	CreatePO(ctx context.Context, input CreatePOInput) (*PurchaseOrder, error)

	// GetPO returns a purchase order with lines and derived financials.
	GetPO(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetPOs returns purchase orders matching the filter.
	GetPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error)

	// ReceivePO marks a pending order received and adds every line's
	// quantity to stock, atomically.
	ReceivePO(ctx context.Context, poID int, actorID *int) (*PurchaseOrder, error)

	// ReturnStock sends goods back to the supplier from a received order.
	// Each line is capped at quantity - quantity_returned; exceeding the
	// cap fails with ErrOverReturn and nothing is recorded. Stock is
	// deducted atomically with the return.
	ReturnStock(ctx context.Context, input ReturnStockInput) (*PurchaseReturn, error)

	// CancelPO cancels a pending order. Received orders cannot be
	// cancelled; goods go back via ReturnStock instead.
	CancelPO(ctx context.Context, poID int) error

	// RecordSupplierPayment records money paid against a purchase order,
	// capped at the balance due.
	RecordSupplierPayment(ctx context.Context, input SupplierPaymentInput) (*SupplierPayment, error)

	// RecordSupplierRefund records money received back for a return,
	// capped at the return's value minus prior refunds, and issues a
	// supplier credit for the same amount.
	RecordSupplierRefund(ctx context.Context, input SupplierRefundInput) (*SupplierRefund, *SupplierCredit, error)

	// ApplyCredit spends supplier credit on a purchase order, capped at
	// both the credit's remaining balance and the order's balance due.
	ApplyCredit(ctx context.Context, input ApplyCreditInput) (*CreditApplication, error)

	// GetSupplierCredits returns a supplier's credits, optionally only
	// those with remaining balance.
	GetSupplierCredits(ctx context.Context, supplierID int, openOnly bool) ([]SupplierCredit, error)
}
