package app

import (
	"context"

	"clinic-billing/internal/core"
)

// Actor identifies the authenticated staff member performing an operation.
// Role checks happen here at the application boundary; core services trust
// their callers.
type Actor struct {
	UserID   int
	Username string
	Role     string
}

// ApplicationService is the single interface all adapters call. It decouples
// presentation from business logic: implementations contain no display logic
// of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// CreateUser creates a staff account. Admin only.
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResult, error)

	// ── Catalog ──

	ListSuppliers(ctx context.Context, activeOnly bool) (*SupplierListResult, error)
	CreateSupplier(ctx context.Context, actor Actor, req SupplierRequest) (*SupplierResult, error)
	UpdateSupplier(ctx context.Context, actor Actor, supplierID int, req SupplierRequest) (*SupplierResult, error)
	DeactivateSupplier(ctx context.Context, actor Actor, supplierID int) error

	ListProducts(ctx context.Context, activeOnly bool) (*ProductListResult, error)
	CreateProduct(ctx context.Context, actor Actor, req ProductRequest) (*ProductResult, error)
	UpdateProduct(ctx context.Context, actor Actor, productID int, req ProductRequest) (*ProductResult, error)
	DeactivateProduct(ctx context.Context, actor Actor, productID int) error

	ListServices(ctx context.Context, activeOnly bool) (*ServiceListResult, error)
	CreateService(ctx context.Context, actor Actor, req ServiceRequest) (*ServiceResult, error)
	UpdateService(ctx context.Context, actor Actor, serviceID int, req ServiceRequest) (*ServiceResult, error)
	DeactivateService(ctx context.Context, actor Actor, serviceID int) error

	// ── Inventory ──

	// GetStockLevels returns the stock position of every stockable product.
	GetStockLevels(ctx context.Context) (*StockResult, error)

	// GetLowStock returns products at or below their low-stock threshold.
	GetLowStock(ctx context.Context) (*StockResult, error)

	// AdjustStock records a manual stock correction with an audit reason.
	AdjustStock(ctx context.Context, actor Actor, req AdjustStockRequest) (*AdjustmentResult, error)

	// ListAdjustments returns the adjustment history (productID 0 = all).
	ListAdjustments(ctx context.Context, productID int) (*AdjustmentListResult, error)

	// ── Billing ──

	// CreateInvoice creates an invoice and consumes stock for product lines.
	CreateInvoice(ctx context.Context, actor Actor, req CreateInvoiceRequest) (*InvoiceResult, error)

	// GetInvoice resolves an invoice by numeric ID or invoice number.
	GetInvoice(ctx context.Context, ref string) (*InvoiceResult, error)

	// ListInvoices returns invoices with derived totals.
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error)

	// ListInvoicePayments returns an invoice's payments with applied and
	// refunded portions.
	ListInvoicePayments(ctx context.Context, invoiceID int) (*PaymentListResult, error)

	// RecordPayment records money received against an invoice. Safe to
	// retry when the request carries an idempotency key.
	RecordPayment(ctx context.Context, actor Actor, req RecordPaymentRequest) (*PaymentResult, error)

	// IssueRefund returns money against a specific payment.
	IssueRefund(ctx context.Context, actor Actor, req IssueRefundRequest) (*RefundResult, error)

	// VoidInvoice cancels an unpaid invoice and restores consumed stock.
	VoidInvoice(ctx context.Context, actor Actor, ref, reason string) error

	// GetPatientBalance sums outstanding balances across a patient's invoices.
	GetPatientBalance(ctx context.Context, patientID int) (*PatientBalanceResult, error)

	// ── Purchasing ──

	CreatePurchaseOrder(ctx context.Context, actor Actor, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error)
	GetPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrderResult, error)
	ListPurchaseOrders(ctx context.Context, req ListPurchaseOrdersRequest) (*PurchaseOrderListResult, error)

	// ReceivePurchaseOrder marks a pending order received and restocks it.
	ReceivePurchaseOrder(ctx context.Context, actor Actor, poID int) (*PurchaseOrderResult, error)

	// ReturnStock sends goods from a received order back to the supplier.
	ReturnStock(ctx context.Context, actor Actor, req ReturnStockRequest) (*PurchaseReturnResult, error)

	// CancelPurchaseOrder cancels a pending order.
	CancelPurchaseOrder(ctx context.Context, actor Actor, poID int) error

	// RecordSupplierPayment records money paid to a supplier against a PO.
	RecordSupplierPayment(ctx context.Context, actor Actor, req SupplierPaymentRequest) (*SupplierPaymentResult, error)

	// RecordSupplierRefund records money received back for a return and
	// issues a supplier credit.
	RecordSupplierRefund(ctx context.Context, actor Actor, req SupplierRefundRequest) (*SupplierRefundResult, error)

	// ApplySupplierCredit spends supplier credit on a purchase order.
	ApplySupplierCredit(ctx context.Context, actor Actor, req ApplyCreditRequest) (*CreditApplicationResult, error)

	// ListSupplierCredits returns a supplier's credits.
	ListSupplierCredits(ctx context.Context, supplierID int, openOnly bool) (*SupplierCreditListResult, error)

	// ── Reporting ──

	GetRevenueSummary(ctx context.Context, fromDate, toDate string) (*core.RevenueSummary, error)
	GetOutstandingInvoices(ctx context.Context) (*OutstandingResult, error)
	GetSupplierBalances(ctx context.Context) (*SupplierBalanceResult, error)
}
