package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses. Status is derived from the balance except for "void",
// which is a terminal administrative state that freezes the ledger.
const (
	InvoiceStatusOpen          = "open"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusVoid          = "void"
)

// Payment methods accepted at the front desk.
const (
	PaymentMethodCash       = "cash"
	PaymentMethodUPI        = "upi"
	PaymentMethodBank       = "bank"
	PaymentMethodCheque     = "cheque"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodOther      = "other"
)

// Invoice represents a patient invoice header with its lines and derived
// financial totals. PatientID, DoctorID, and AppointmentID reference records
// owned by other modules and are stored as opaque identifiers.
type Invoice struct {
	ID            int
	InvoiceNumber string
	PatientID     int
	DoctorID      *int
	AppointmentID *int
	InvoiceDate   string // YYYY-MM-DD
	DueDate       *string
	Status        string
	Discount      decimal.Decimal
	Notes         *string
	CreatedBy     *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []InvoiceLine

	// Derived by the calculator from lines, payments, and refunds.
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal // sum of applied payment portions
	AmountRefunded decimal.Decimal
	Balance        decimal.Decimal
	Credit         decimal.Decimal // overpayment not applied to the balance
}

// InvoiceLine represents a single billed item: a stock product, a catalog
// service, or a free-text charge.
type InvoiceLine struct {
	ID          int
	InvoiceID   int
	LineNumber  int
	ProductID   *int
	ServiceID   *int
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	LineTotal   decimal.Decimal
}

// Payment represents money received against an invoice. Amount is what the
// patient tendered; Applied and Refunded are derived by the calculator.
type Payment struct {
	ID             int
	InvoiceID      int
	Amount         decimal.Decimal
	Method         string
	PaidAt         time.Time
	Notes          *string
	IdempotencyKey *string
	RecordedBy     *int

	Applied  decimal.Decimal
	Refunded decimal.Decimal
}

// Refund represents money returned to the patient against a specific payment.
type Refund struct {
	ID             int
	PaymentID      int
	Amount         decimal.Decimal
	Method         string
	RefundedAt     time.Time
	Notes          *string
	IdempotencyKey *string
	RecordedBy     *int
}

// InvoiceLineInput holds the fields required to create an invoice line.
// UnitPrice, if nil, is resolved from the product or service catalog.
type InvoiceLineInput struct {
	ProductID   *int
	ServiceID   *int
	Description string
	Quantity    int
	UnitPrice   *decimal.Decimal
	Discount    decimal.Decimal
}

// CreateInvoiceInput holds the fields required to create an invoice.
type CreateInvoiceInput struct {
	PatientID     int
	DoctorID      *int
	AppointmentID *int
	InvoiceDate   string // YYYY-MM-DD; empty means today
	DueDate       *string
	Discount      decimal.Decimal
	Notes         string
	Lines         []InvoiceLineInput
	CreatedBy     *int
}

// PaymentInput holds the fields required to record a payment.
// IdempotencyKey, if non-empty, makes the call safe to retry: a second call
// with the same key returns the originally recorded payment.
type PaymentInput struct {
	InvoiceID      int
	Amount         decimal.Decimal
	Method         string
	Notes          string
	IdempotencyKey string
	RecordedBy     *int
}

// RefundInput holds the fields required to issue a refund against a payment.
type RefundInput struct {
	PaymentID      int
	Amount         decimal.Decimal
	Method         string
	Notes          string
	IdempotencyKey string
	RecordedBy     *int
}

// InvoiceFilter narrows ListInvoices. Zero values mean "no filter".
type InvoiceFilter struct {
	PatientID int
	Status    string
	DateFrom  string // YYYY-MM-DD inclusive
	DateTo    string // YYYY-MM-DD inclusive
	Limit     int
	Offset    int
}

// BillingService provides the invoice lifecycle: creation with stock
// consumption, payments, refunds, and voiding.
type BillingService interface {
	// CreateInvoice creates an invoice with a gapless per-day number
	// (INV-yymmdd-NNNN) and atomically consumes stock for every stockable
	// product line. If any line lacks stock the whole invoice is rejected
	// with ErrInsufficientStock.
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*Invoice, error)

	// GetInvoice returns an invoice with lines, payments applied, and
	// derived totals.
	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)

	// GetInvoiceByNumber looks an invoice up by its public number.
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)

	// ListInvoices returns invoice headers with derived totals.
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// ListPayments returns the payments recorded against an invoice with
	// their applied and refunded portions.
	ListPayments(ctx context.Context, invoiceID int) ([]Payment, error)

	// RecordPayment records money received against an open or partially
	// paid invoice and recomputes its status. Payments above the balance
	// are accepted in full; the excess becomes patient credit.
	RecordPayment(ctx context.Context, input PaymentInput) (*Payment, error)

	// IssueRefund returns money against a specific payment, capped at the
	// portion of that payment still applied to the invoice. The invoice
	// balance and status are recomputed.
	IssueRefund(ctx context.Context, input RefundInput) (*Refund, error)

	// VoidInvoice cancels an invoice with no recorded payments and restores
	// the stock its lines consumed.
	VoidInvoice(ctx context.Context, invoiceID int, actorID *int, reason string) error

	// PatientBalance returns the sum of outstanding balances across a
	// patient's non-void invoices.
	PatientBalance(ctx context.Context, patientID int) (decimal.Decimal, error)
}
