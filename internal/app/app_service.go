package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"clinic-billing/internal/core"
)

type appService struct {
	users      core.UserService
	catalog    core.CatalogService
	inventory  core.InventoryService
	billing    core.BillingService
	purchasing core.PurchaseOrderService
	reporting  core.ReportingService
	validate   *validator.Validate
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	users core.UserService,
	catalog core.CatalogService,
	inventory core.InventoryService,
	billing core.BillingService,
	purchasing core.PurchaseOrderService,
	reporting core.ReportingService,
) ApplicationService {
	return &appService{
		users:      users,
		catalog:    catalog,
		inventory:  inventory,
		billing:    billing,
		purchasing: purchasing,
		reporting:  reporting,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// AuthenticateUser verifies credentials and returns a session on success.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &UserSession{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// GetUser returns a user profile by ID.
func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{User: user}, nil
}

// CreateUser creates a staff account. Admin only.
func (s *appService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResult, error) {
	if err := require(actor, capManageUsers); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	user, err := s.users.CreateUser(ctx, core.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return nil, err
	}
	return &UserResult{User: user}, nil
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) ListSuppliers(ctx context.Context, activeOnly bool) (*SupplierListResult, error) {
	suppliers, err := s.catalog.GetSuppliers(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &SupplierListResult{Suppliers: suppliers}, nil
}

func (s *appService) CreateSupplier(ctx context.Context, actor Actor, req SupplierRequest) (*SupplierResult, error) {
	if err := require(actor, capManageCatalog); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	supplier, err := s.catalog.CreateSupplier(ctx, supplierInput(req))
	if err != nil {
		return nil, err
	}
	return &SupplierResult{Supplier: supplier}, nil
}

func (s *appService) UpdateSupplier(ctx context.Context, actor Actor, supplierID int, req SupplierRequest) (*SupplierResult, error) {
	if err := require(actor, capManageCatalog); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	supplier, err := s.catalog.UpdateSupplier(ctx, supplierID, supplierInput(req))
	if err != nil {
		return nil, err
	}
	return &SupplierResult{Supplier: supplier}, nil
}

func (s *appService) DeactivateSupplier(ctx context.Context, actor Actor, supplierID int) error {
	if err := require(actor, capManageCatalog); err != nil {
		return err
	}
	return s.catalog.DeactivateSupplier(ctx, supplierID)
}

func (s *appService) ListProducts(ctx context.Context, activeOnly bool) (*ProductListResult, error) {
	products, err := s.catalog.GetProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) CreateProduct(ctx context.Context, actor Actor, req ProductRequest) (*ProductResult, error) {
	if err := require(actor, capManageCatalog); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("unit_price", req.UnitPrice); err != nil {
		return nil, err
	}
	product, err := s.catalog.CreateProduct(ctx, productInput(req))
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: product}, nil
}

func (s *appService) UpdateProduct(ctx context.Context, actor Actor, productID int, req ProductRequest) (*ProductResult, error) {
	if err := require(actor, capManageCatalog); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("unit_price", req.UnitPrice); err != nil {
		return nil, err
	}
	product, err := s.catalog.UpdateProduct(ctx, productID, productInput(req))
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: product}, nil
}

func (s *appService) DeactivateProduct(ctx context.Context, actor Actor, productID int) error {
	if err := require(actor, capManageCatalog); err != nil {
		return err
	}
	return s.catalog.DeactivateProduct(ctx, productID)
}

func (s *appService) ListServices(ctx context.Context, activeOnly bool) (*ServiceListResult, error) {
	services, err := s.catalog.GetServices(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &ServiceListResult{Services: services}, nil
}

func (s *appService) CreateService(ctx context.Context, actor Actor, req ServiceRequest) (*ServiceResult, error) {
	if err := require(actor, capManageCatalog); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("price", req.Price); err != nil {
		return nil, err
	}
	service, err := s.catalog.CreateService(ctx, serviceInput(req))
	if err != nil {
		return nil, err
	}
	return &ServiceResult{Service: service}, nil
}

func (s *appService) UpdateService(ctx context.Context, actor Actor, serviceID int, req ServiceRequest) (*ServiceResult, error) {
	if err := require(actor, capManageCatalog); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("price", req.Price); err != nil {
		return nil, err
	}
	service, err := s.catalog.UpdateService(ctx, serviceID, serviceInput(req))
	if err != nil {
		return nil, err
	}
	return &ServiceResult{Service: service}, nil
}

func (s *appService) DeactivateService(ctx context.Context, actor Actor, serviceID int) error {
	if err := require(actor, capManageCatalog); err != nil {
		return err
	}
	return s.catalog.DeactivateService(ctx, serviceID)
}

// ── Inventory ─────────────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	levels, err := s.inventory.StockLevels(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) GetLowStock(ctx context.Context) (*StockResult, error) {
	levels, err := s.inventory.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) AdjustStock(ctx context.Context, actor Actor, req AdjustStockRequest) (*AdjustmentResult, error) {
	if err := require(actor, capAdjustStock); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	adj, err := s.inventory.Adjust(ctx, core.StockAdjustmentInput{
		ProductID:      req.ProductID,
		AdjustmentType: req.AdjustmentType,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Notes:          req.Notes,
		AdjustedBy:     actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	return &AdjustmentResult{Adjustment: adj}, nil
}

func (s *appService) ListAdjustments(ctx context.Context, productID int) (*AdjustmentListResult, error) {
	adjustments, err := s.inventory.Adjustments(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &AdjustmentListResult{Adjustments: adjustments}, nil
}

// ── Billing ───────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, actor Actor, req CreateInvoiceRequest) (*InvoiceResult, error) {
	if err := require(actor, capCreateInvoice); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	lines := make([]core.InvoiceLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.InvoiceLineInput{
			ProductID:   l.ProductID,
			ServiceID:   l.ServiceID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
		}
	}
	invoice, err := s.billing.CreateInvoice(ctx, core.CreateInvoiceInput{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		AppointmentID: req.AppointmentID,
		InvoiceDate:   req.InvoiceDate,
		DueDate:       req.DueDate,
		Discount:      req.Discount,
		Notes:         req.Notes,
		Lines:         lines,
		CreatedBy:     actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: invoice}, nil
}

func (s *appService) GetInvoice(ctx context.Context, ref string) (*InvoiceResult, error) {
	invoice, err := s.resolveInvoice(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: invoice}, nil
}

func (s *appService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	invoices, err := s.billing.ListInvoices(ctx, core.InvoiceFilter{
		PatientID: req.PatientID,
		Status:    req.Status,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &InvoiceListResult{Invoices: invoices}, nil
}

func (s *appService) ListInvoicePayments(ctx context.Context, invoiceID int) (*PaymentListResult, error) {
	payments, err := s.billing.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Payments: payments}, nil
}

func (s *appService) RecordPayment(ctx context.Context, actor Actor, req RecordPaymentRequest) (*PaymentResult, error) {
	if err := require(actor, capRecordPayment); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("amount", req.Amount); err != nil {
		return nil, err
	}
	payment, err := s.billing.RecordPayment(ctx, core.PaymentInput{
		InvoiceID:      req.InvoiceID,
		Amount:         req.Amount,
		Method:         req.Method,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		RecordedBy:     actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	invoice, err := s.billing.GetInvoice(ctx, payment.InvoiceID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment, Invoice: invoice}, nil
}

func (s *appService) IssueRefund(ctx context.Context, actor Actor, req IssueRefundRequest) (*RefundResult, error) {
	if err := require(actor, capIssueRefund); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("amount", req.Amount); err != nil {
		return nil, err
	}
	refund, err := s.billing.IssueRefund(ctx, core.RefundInput{
		PaymentID:      req.PaymentID,
		Amount:         req.Amount,
		Method:         req.Method,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		RecordedBy:     actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{Refund: refund}, nil
}

func (s *appService) VoidInvoice(ctx context.Context, actor Actor, ref, reason string) error {
	if err := require(actor, capVoidInvoice); err != nil {
		return err
	}
	invoice, err := s.resolveInvoice(ctx, ref)
	if err != nil {
		return err
	}
	return s.billing.VoidInvoice(ctx, invoice.ID, actorRef(actor), reason)
}

func (s *appService) GetPatientBalance(ctx context.Context, patientID int) (*PatientBalanceResult, error) {
	balance, err := s.billing.PatientBalance(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &PatientBalanceResult{PatientID: patientID, Balance: balance}, nil
}

// ── Purchasing ────────────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, actor Actor, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	if err := require(actor, capManagePurchase); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	lines := make([]core.POLineInput, len(req.Lines))
	for i, l := range req.Lines {
		if err := positive("unit_cost", l.UnitCost); err != nil {
			return nil, err
		}
		lines[i] = core.POLineInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitCost:  l.UnitCost,
		}
	}
	po, err := s.purchasing.CreatePO(ctx, core.CreatePOInput{
		SupplierID: req.SupplierID,
		Notes:      req.Notes,
		Lines:      lines,
		CreatedBy:  actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

func (s *appService) GetPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrderResult, error) {
	po, err := s.purchasing.GetPO(ctx, poID)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

func (s *appService) ListPurchaseOrders(ctx context.Context, req ListPurchaseOrdersRequest) (*PurchaseOrderListResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	pos, err := s.purchasing.GetPOs(ctx, core.POFilter{
		SupplierID: req.SupplierID,
		Status:     req.Status,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderListResult{PurchaseOrders: pos}, nil
}

func (s *appService) ReceivePurchaseOrder(ctx context.Context, actor Actor, poID int) (*PurchaseOrderResult, error) {
	if err := require(actor, capManagePurchase); err != nil {
		return nil, err
	}
	po, err := s.purchasing.ReceivePO(ctx, poID, actorRef(actor))
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

func (s *appService) ReturnStock(ctx context.Context, actor Actor, req ReturnStockRequest) (*PurchaseReturnResult, error) {
	if err := require(actor, capManagePurchase); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	lines := make([]core.ReturnLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.ReturnLineInput{POLineID: l.POLineID, Quantity: l.Quantity}
	}
	ret, err := s.purchasing.ReturnStock(ctx, core.ReturnStockInput{
		POID:      req.PurchaseOrderID,
		Reason:    req.Reason,
		Lines:     lines,
		CreatedBy: actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	po, err := s.purchasing.GetPO(ctx, req.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	return &PurchaseReturnResult{Return: ret, PurchaseOrder: po}, nil
}

func (s *appService) CancelPurchaseOrder(ctx context.Context, actor Actor, poID int) error {
	if err := require(actor, capManagePurchase); err != nil {
		return err
	}
	return s.purchasing.CancelPO(ctx, poID)
}

func (s *appService) RecordSupplierPayment(ctx context.Context, actor Actor, req SupplierPaymentRequest) (*SupplierPaymentResult, error) {
	if err := require(actor, capSupplierMoney); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("amount", req.Amount); err != nil {
		return nil, err
	}
	payment, err := s.purchasing.RecordSupplierPayment(ctx, core.SupplierPaymentInput{
		POID:       req.PurchaseOrderID,
		Amount:     req.Amount,
		Method:     req.Method,
		Notes:      req.Notes,
		RecordedBy: actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	po, err := s.purchasing.GetPO(ctx, req.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	return &SupplierPaymentResult{Payment: payment, PurchaseOrder: po}, nil
}

func (s *appService) RecordSupplierRefund(ctx context.Context, actor Actor, req SupplierRefundRequest) (*SupplierRefundResult, error) {
	if err := require(actor, capSupplierMoney); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("amount", req.Amount); err != nil {
		return nil, err
	}
	refund, credit, err := s.purchasing.RecordSupplierRefund(ctx, core.SupplierRefundInput{
		ReturnID:   req.PurchaseReturnID,
		Amount:     req.Amount,
		Notes:      req.Notes,
		RecordedBy: actorRef(actor),
	})
	if err != nil {
		return nil, err
	}
	return &SupplierRefundResult{Refund: refund, Credit: credit}, nil
}

func (s *appService) ApplySupplierCredit(ctx context.Context, actor Actor, req ApplyCreditRequest) (*CreditApplicationResult, error) {
	if err := require(actor, capSupplierMoney); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := positive("amount", req.Amount); err != nil {
		return nil, err
	}
	application, err := s.purchasing.ApplyCredit(ctx, core.ApplyCreditInput{
		CreditID: req.CreditID,
		POID:     req.PurchaseOrderID,
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, err
	}
	po, err := s.purchasing.GetPO(ctx, req.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	credit, err := s.creditByID(ctx, po.SupplierID, application.CreditID)
	if err != nil {
		return nil, err
	}
	return &CreditApplicationResult{Application: application, Credit: credit, PurchaseOrder: po}, nil
}

func (s *appService) ListSupplierCredits(ctx context.Context, supplierID int, openOnly bool) (*SupplierCreditListResult, error) {
	credits, err := s.purchasing.GetSupplierCredits(ctx, supplierID, openOnly)
	if err != nil {
		return nil, err
	}
	return &SupplierCreditListResult{Credits: credits}, nil
}

// ── Reporting ─────────────────────────────────────────────────────────────────

func (s *appService) GetRevenueSummary(ctx context.Context, fromDate, toDate string) (*core.RevenueSummary, error) {
	return s.reporting.GetRevenueSummary(ctx, fromDate, toDate)
}

func (s *appService) GetOutstandingInvoices(ctx context.Context) (*OutstandingResult, error) {
	invoices, err := s.reporting.GetOutstandingInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return &OutstandingResult{Invoices: invoices}, nil
}

func (s *appService) GetSupplierBalances(ctx context.Context) (*SupplierBalanceResult, error) {
	balances, err := s.reporting.GetSupplierBalances(ctx)
	if err != nil {
		return nil, err
	}
	return &SupplierBalanceResult{Balances: balances}, nil
}

// ── private helpers ───────────────────────────────────────────────────────────

// check runs struct validation and converts failures to ErrConstraintViolation
// so adapters map them to client errors.
func (s *appService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrConstraintViolation)
	}
	return nil
}

// positive rejects zero and negative money amounts.
func positive(field string, d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%s must be positive: %w", field, core.ErrConstraintViolation)
	}
	return nil
}

// actorRef returns the actor's user ID as a nullable reference for audit
// columns. A zero ID (system actions, tests) is stored as NULL.
func actorRef(actor Actor) *int {
	if actor.UserID == 0 {
		return nil
	}
	id := actor.UserID
	return &id
}

func supplierInput(req SupplierRequest) core.SupplierInput {
	return core.SupplierInput{
		Name:          req.Name,
		Category:      req.Category,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
	}
}

func productInput(req ProductRequest) core.ProductInput {
	return core.ProductInput{
		Name:              req.Name,
		Category:          req.Category,
		Description:       req.Description,
		UnitPrice:         req.UnitPrice,
		LowStockThreshold: req.LowStockThreshold,
		IsStockable:       req.IsStockable,
	}
}

func serviceInput(req ServiceRequest) core.ServiceInput {
	return core.ServiceInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}
}

// resolveInvoice looks an invoice up by numeric ID or public invoice number.
func (s *appService) resolveInvoice(ctx context.Context, ref string) (*core.Invoice, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return s.billing.GetInvoice(ctx, id)
	}
	return s.billing.GetInvoiceByNumber(ctx, ref)
}

// creditByID finds a supplier credit in the supplier's credit list.
func (s *appService) creditByID(ctx context.Context, supplierID, creditID int) (*core.SupplierCredit, error) {
	credits, err := s.purchasing.GetSupplierCredits(ctx, supplierID, false)
	if err != nil {
		return nil, err
	}
	for i := range credits {
		if credits[i].ID == creditID {
			return &credits[i], nil
		}
	}
	return nil, core.ErrNotFound
}
