package app

import "github.com/shopspring/decimal"

// Request types for ApplicationService operations. Adapters decode straight
// into these; validation tags are enforced by the service before any core
// call.

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin doctor receptionist assistant"`
}

// ── Catalog ──

type SupplierRequest struct {
	Name          string `json:"name" validate:"required"`
	Category      string `json:"category" validate:"required,oneof=local_shop local_distributor e_commerce pharmaceutical"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Address       string `json:"address,omitempty"`
}

type ProductRequest struct {
	Name              string          `json:"name" validate:"required"`
	Category          string          `json:"category,omitempty"`
	Description       string          `json:"description,omitempty"`
	UnitPrice         decimal.Decimal `json:"unit_price" validate:"required"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
	IsStockable       bool            `json:"is_stockable"`
}

type ServiceRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price" validate:"required"`
}

// ── Inventory ──

type AdjustStockRequest struct {
	ProductID      int    `json:"product_id" validate:"required,gt=0"`
	AdjustmentType string `json:"adjustment_type" validate:"required,oneof=addition subtraction"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	Reason         string `json:"reason" validate:"required,oneof=damaged expired stock_take initial_stock other"`
	Notes          string `json:"notes,omitempty"`
}

// ── Billing ──

// InvoiceLineRequest bills either a product, a service, or a free-text
// charge. A nil unit price means "use the catalog price".
type InvoiceLineRequest struct {
	ProductID   *int             `json:"product_id,omitempty"`
	ServiceID   *int             `json:"service_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Discount    decimal.Decimal  `json:"discount"`
}

type CreateInvoiceRequest struct {
	PatientID     int                  `json:"patient_id" validate:"required,gt=0"`
	DoctorID      *int                 `json:"doctor_id,omitempty"`
	AppointmentID *int                 `json:"appointment_id,omitempty"`
	InvoiceDate   string               `json:"invoice_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DueDate       *string              `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Discount      decimal.Decimal      `json:"discount"`
	Notes         string               `json:"notes,omitempty"`
	Lines         []InvoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type ListInvoicesRequest struct {
	PatientID int    `json:"patient_id,omitempty"`
	Status    string `json:"status,omitempty" validate:"omitempty,oneof=open partially_paid paid void"`
	DateFrom  string `json:"date_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `json:"date_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,gt=0,lte=500"`
	Offset    int    `json:"offset,omitempty" validate:"gte=0"`
}

type RecordPaymentRequest struct {
	InvoiceID      int             `json:"invoice_id" validate:"required,gt=0"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Method         string          `json:"method" validate:"required,oneof=cash upi bank cheque credit_card other"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type IssueRefundRequest struct {
	PaymentID      int             `json:"payment_id" validate:"required,gt=0"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Method         string          `json:"method" validate:"required,oneof=cash upi bank cheque credit_card other"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// ── Purchasing ──

type PurchaseOrderLineRequest struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"required"`
}

type CreatePurchaseOrderRequest struct {
	SupplierID int                        `json:"supplier_id" validate:"required,gt=0"`
	Notes      string                     `json:"notes,omitempty"`
	Lines      []PurchaseOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type ListPurchaseOrdersRequest struct {
	SupplierID int    `json:"supplier_id,omitempty"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=pending received partially_returned returned cancelled"`
	Limit      int    `json:"limit,omitempty" validate:"omitempty,gt=0,lte=500"`
	Offset     int    `json:"offset,omitempty" validate:"gte=0"`
}

type ReturnLineRequest struct {
	POLineID int `json:"po_line_id" validate:"required,gt=0"`
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type ReturnStockRequest struct {
	PurchaseOrderID int                 `json:"purchase_order_id" validate:"required,gt=0"`
	Reason          string              `json:"reason,omitempty"`
	Lines           []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type SupplierPaymentRequest struct {
	PurchaseOrderID int             `json:"purchase_order_id" validate:"required,gt=0"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Method          string          `json:"method" validate:"required,oneof=cash upi bank cheque credit_card other"`
	Notes           string          `json:"notes,omitempty"`
}

type SupplierRefundRequest struct {
	PurchaseReturnID int             `json:"purchase_return_id" validate:"required,gt=0"`
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	Notes            string          `json:"notes,omitempty"`
}

type ApplyCreditRequest struct {
	CreditID        int             `json:"credit_id" validate:"required,gt=0"`
	PurchaseOrderID int             `json:"purchase_order_id" validate:"required,gt=0"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
}
