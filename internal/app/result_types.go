package app

import (
	"github.com/shopspring/decimal"

	"clinic-billing/internal/core"
)

// UserSession is returned by AuthenticateUser on success.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserResult is returned by user operations.
type UserResult struct {
	User *core.User `json:"user"`
}

// SupplierResult is returned by supplier write operations.
type SupplierResult struct {
	Supplier *core.Supplier `json:"supplier"`
}

// SupplierListResult is returned by ListSuppliers.
type SupplierListResult struct {
	Suppliers []core.Supplier `json:"suppliers"`
}

// ProductResult is returned by product write operations.
type ProductResult struct {
	Product *core.Product `json:"product"`
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// ServiceResult is returned by service write operations.
type ServiceResult struct {
	Service *core.Service `json:"service"`
}

// ServiceListResult is returned by ListServices.
type ServiceListResult struct {
	Services []core.Service `json:"services"`
}

// StockResult is returned by GetStockLevels and GetLowStock.
type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

// AdjustmentResult is returned by AdjustStock.
type AdjustmentResult struct {
	Adjustment *core.StockAdjustment `json:"adjustment"`
}

// AdjustmentListResult is returned by ListAdjustments.
type AdjustmentListResult struct {
	Adjustments []core.StockAdjustment `json:"adjustments"`
}

// InvoiceResult is returned by invoice lifecycle operations.
type InvoiceResult struct {
	Invoice *core.Invoice `json:"invoice"`
}

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	Invoices []core.Invoice `json:"invoices"`
}

// PaymentResult is returned by RecordPayment.
type PaymentResult struct {
	Payment *core.Payment `json:"payment"`
	Invoice *core.Invoice `json:"invoice"`
}

// PaymentListResult is returned by ListInvoicePayments.
type PaymentListResult struct {
	Payments []core.Payment `json:"payments"`
}

// RefundResult is returned by IssueRefund.
type RefundResult struct {
	Refund *core.Refund `json:"refund"`
}

// PatientBalanceResult is returned by GetPatientBalance.
type PatientBalanceResult struct {
	PatientID int             `json:"patient_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// PurchaseOrderResult is returned by purchase order lifecycle operations.
type PurchaseOrderResult struct {
	PurchaseOrder *core.PurchaseOrder `json:"purchase_order"`
}

// PurchaseOrderListResult is returned by ListPurchaseOrders.
type PurchaseOrderListResult struct {
	PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
}

// PurchaseReturnResult is returned by ReturnStock.
type PurchaseReturnResult struct {
	Return        *core.PurchaseReturn `json:"return"`
	PurchaseOrder *core.PurchaseOrder  `json:"purchase_order"`
}

// SupplierPaymentResult is returned by RecordSupplierPayment.
type SupplierPaymentResult struct {
	Payment       *core.SupplierPayment `json:"payment"`
	PurchaseOrder *core.PurchaseOrder   `json:"purchase_order"`
}

// SupplierRefundResult is returned by RecordSupplierRefund. Credit is the
// supplier credit issued for the refunded amount.
type SupplierRefundResult struct {
	Refund *core.SupplierRefund `json:"refund"`
	Credit *core.SupplierCredit `json:"credit"`
}

// CreditApplicationResult is returned by ApplySupplierCredit.
type CreditApplicationResult struct {
	Application   *core.CreditApplication `json:"application"`
	Credit        *core.SupplierCredit    `json:"credit"`
	PurchaseOrder *core.PurchaseOrder     `json:"purchase_order"`
}

// SupplierCreditListResult is returned by ListSupplierCredits.
type SupplierCreditListResult struct {
	Credits []core.SupplierCredit `json:"credits"`
}

// OutstandingResult is returned by GetOutstandingInvoices.
type OutstandingResult struct {
	Invoices []core.OutstandingInvoice `json:"invoices"`
}

// SupplierBalanceResult is returned by GetSupplierBalances.
type SupplierBalanceResult struct {
	Balances []core.SupplierBalance `json:"balances"`
}
