package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type purchaseOrderService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
func NewPurchaseOrderService(pool *pgxpool.Pool, inventory InventoryService) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, inventory: inventory}
}

func (s *purchaseOrderService) CreatePO(ctx context.Context, input CreatePOInput) (*PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("purchase order must have at least one line: %w", ErrConstraintViolation)
	}
	for i, l := range input.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: quantity must be positive, got %d: %w", i+1, l.Quantity, ErrConstraintViolation)
		}
		if l.UnitCost.IsNegative() {
			return nil, fmt.Errorf("line %d: unit cost cannot be negative: %w", i+1, ErrConstraintViolation)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var supplierName string
	var supplierActive bool
	if err := tx.QueryRow(ctx,
		"SELECT name, is_active FROM suppliers WHERE id = $1",
		input.SupplierID,
	).Scan(&supplierName, &supplierActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d: %w", input.SupplierID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve supplier: %w", err)
	}
	if !supplierActive {
		return nil, fmt.Errorf("supplier %q is inactive: %w", supplierName, ErrConstraintViolation)
	}

	po := PurchaseOrder{
		SupplierID:   input.SupplierID,
		SupplierName: supplierName,
		Status:       POStatusPending,
		Notes:        nullable(input.Notes),
		CreatedBy:    input.CreatedBy,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier_id, notes, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, order_date, created_at
	`, po.SupplierID, po.Notes, po.CreatedBy).Scan(&po.ID, &po.OrderDate, &po.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase order: %w", err)
	}

	for i, l := range input.Lines {
		var productName string
		if err := tx.QueryRow(ctx,
			"SELECT name FROM products WHERE id = $1 AND is_active",
			l.ProductID,
		).Scan(&productName); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("line %d: product %d: %w", i+1, l.ProductID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to resolve product for line %d: %w", i+1, err)
		}

		line := PurchaseOrderLine{
			POID:        po.ID,
			LineNumber:  i + 1,
			ProductID:   l.ProductID,
			ProductName: productName,
			Quantity:    l.Quantity,
			UnitCost:    l.UnitCost,
			LineTotal:   l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))),
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_order_lines (po_id, line_number, product_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, line.POID, line.LineNumber, line.ProductID, line.Quantity, line.UnitCost).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert purchase order line %d: %w", line.LineNumber, err)
		}
		po.Total = po.Total.Add(line.LineTotal)
		po.Lines = append(po.Lines, line)
	}
	po.BalanceDue = po.Total

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase order: %w", err)
	}
	return &po, nil
}

func (s *purchaseOrderService) GetPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return loadPO(ctx, s.pool, poID)
}

func loadPO(ctx context.Context, q querier, poID int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := q.QueryRow(ctx, `
		SELECT po.id, po.supplier_id, s.name, po.status, po.order_date, po.received_at,
		       po.notes, po.created_by, po.created_at
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id
		WHERE po.id = $1
	`, poID).Scan(&po.ID, &po.SupplierID, &po.SupplierName, &po.Status, &po.OrderDate,
		&po.ReceivedAt, &po.Notes, &po.CreatedBy, &po.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch purchase order: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT l.id, l.po_id, l.line_number, l.product_id, p.name,
		       l.quantity, l.unit_cost, l.quantity_returned
		FROM purchase_order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.po_id = $1
		ORDER BY l.line_number
	`, poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.POID, &l.LineNumber, &l.ProductID, &l.ProductName,
			&l.Quantity, &l.UnitCost, &l.QuantityReturned); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		l.LineTotal = l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
		po.Total = po.Total.Add(l.LineTotal)
		po.ReturnedValue = po.ReturnedValue.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.QuantityReturned))))
		po.Lines = append(po.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase order lines: %w", err)
	}

	if err := q.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM supplier_payments WHERE po_id = $1",
		poID,
	).Scan(&po.AmountPaid); err != nil {
		return nil, fmt.Errorf("failed to sum supplier payments: %w", err)
	}
	if err := q.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM credit_applications WHERE po_id = $1",
		poID,
	).Scan(&po.CreditApplied); err != nil {
		return nil, fmt.Errorf("failed to sum credit applications: %w", err)
	}

	po.BalanceDue = po.Total.Sub(po.ReturnedValue).Sub(po.AmountPaid).Sub(po.CreditApplied)
	if po.BalanceDue.IsNegative() {
		po.BalanceDue = decimal.Zero
	}
	return &po, nil
}

func (s *purchaseOrderService) GetPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT po.id
		FROM purchase_orders po
		WHERE ($1 = 0 OR po.supplier_id = $1)
		  AND ($2 = '' OR po.status = $2)
		ORDER BY po.order_date DESC, po.id DESC
		LIMIT $3 OFFSET $4
	`, filter.SupplierID, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan purchase order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase orders: %w", err)
	}

	pos := make([]PurchaseOrder, 0, len(ids))
	for _, id := range ids {
		po, err := loadPO(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		pos = append(pos, *po)
	}
	return pos, nil
}

func (s *purchaseOrderService) ReceivePO(ctx context.Context, poID int, actorID *int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 FOR UPDATE",
		poID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}
	if status != POStatusPending {
		return nil, fmt.Errorf("purchase order %d is %s, only pending orders can be received: %w",
			poID, status, ErrInvalidStateTransition)
	}

	// Product ID order keeps lock acquisition deterministic across
	// concurrent documents.
	rows, err := tx.Query(ctx,
		"SELECT product_id, quantity FROM purchase_order_lines WHERE po_id = $1 ORDER BY product_id",
		poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order lines: %w", err)
	}
	type receiptLine struct {
		productID int
		qty       int
	}
	var receipts []receiptLine
	for rows.Next() {
		var r receiptLine
		if err := rows.Scan(&r.productID, &r.qty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		receipts = append(receipts, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase order lines: %w", err)
	}

	for _, r := range receipts {
		if err := s.inventory.RestockTx(ctx, tx, r.productID, r.qty); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $1, received_at = NOW() WHERE id = $2",
		POStatusReceived, poID,
	); err != nil {
		return nil, fmt.Errorf("failed to mark purchase order received: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receipt: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) ReturnStock(ctx context.Context, input ReturnStockInput) (*PurchaseReturn, error) {
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("return must have at least one line: %w", ErrConstraintViolation)
	}
	for i, l := range input.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("return line %d: quantity must be positive, got %d: %w",
				i+1, l.Quantity, ErrConstraintViolation)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 FOR UPDATE",
		input.POID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", input.POID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}
	if status != POStatusReceived && status != POStatusPartiallyReturned {
		return nil, fmt.Errorf("purchase order %d is %s, goods can only be returned after receipt: %w",
			input.POID, status, ErrInvalidStateTransition)
	}

	ret := PurchaseReturn{
		POID:      input.POID,
		Reason:    nullable(input.Reason),
		CreatedBy: input.CreatedBy,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_returns (po_id, reason, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, return_date
	`, ret.POID, ret.Reason, ret.CreatedBy).Scan(&ret.ID, &ret.ReturnDate)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase return: %w", err)
	}

	for i, l := range input.Lines {
		// The PO header lock serializes returns, so read-then-update on the
		// line is safe.
		var productID, qty, returned int
		var unitCost decimal.Decimal
		err := tx.QueryRow(ctx, `
			SELECT product_id, quantity, quantity_returned, unit_cost
			FROM purchase_order_lines
			WHERE id = $1 AND po_id = $2
		`, l.POLineID, input.POID).Scan(&productID, &qty, &returned, &unitCost)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("return line %d: purchase order line %d: %w", i+1, l.POLineID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to resolve purchase order line: %w", err)
		}

		returnable := qty - returned
		if l.Quantity > returnable {
			return nil, fmt.Errorf("line %d: returning %d but only %d returnable: %w",
				l.POLineID, l.Quantity, returnable, ErrOverReturn)
		}

		if err := s.inventory.DeductTx(ctx, tx, productID, l.Quantity); err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx,
			"UPDATE purchase_order_lines SET quantity_returned = quantity_returned + $1 WHERE id = $2",
			l.Quantity, l.POLineID,
		); err != nil {
			return nil, fmt.Errorf("failed to update returned quantity: %w", err)
		}

		var rl PurchaseReturnLine
		rl.ReturnID = ret.ID
		rl.POLineID = l.POLineID
		rl.Quantity = l.Quantity
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchase_return_lines (return_id, po_line_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id
		`, rl.ReturnID, rl.POLineID, rl.Quantity).Scan(&rl.ID); err != nil {
			return nil, fmt.Errorf("failed to insert return line: %w", err)
		}
		ret.Lines = append(ret.Lines, rl)
		ret.Value = ret.Value.Add(unitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	// Fully returned when every line's returned quantity reached its
	// ordered quantity.
	var outstanding int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM purchase_order_lines WHERE po_id = $1 AND quantity_returned < quantity",
		input.POID,
	).Scan(&outstanding); err != nil {
		return nil, fmt.Errorf("failed to check outstanding lines: %w", err)
	}
	newStatus := POStatusPartiallyReturned
	if outstanding == 0 {
		newStatus = POStatusReturned
	}
	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $1 WHERE id = $2",
		newStatus, input.POID,
	); err != nil {
		return nil, fmt.Errorf("failed to update purchase order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit return: %w", err)
	}
	return &ret, nil
}

func (s *purchaseOrderService) CancelPO(ctx context.Context, poID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 FOR UPDATE",
		poID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return fmt.Errorf("failed to lock purchase order: %w", err)
	}
	if status != POStatusPending {
		return fmt.Errorf("purchase order %d is %s, only pending orders can be cancelled: %w",
			poID, status, ErrInvalidStateTransition)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $1 WHERE id = $2",
		POStatusCancelled, poID,
	); err != nil {
		return fmt.Errorf("failed to cancel purchase order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return nil
}

// ── Supplier money flows ──────────────────────────────────────────────────────

func (s *purchaseOrderService) RecordSupplierPayment(ctx context.Context, input SupplierPaymentInput) (*SupplierPayment, error) {
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, fmt.Errorf("payment amount must be positive, got %s: %w", input.Amount, ErrConstraintViolation)
	}
	method := input.Method
	if method == "" {
		method = PaymentMethodBank
	}
	if !paymentMethods[method] {
		return nil, fmt.Errorf("unknown payment method %q: %w", input.Method, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 FOR UPDATE",
		input.POID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", input.POID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}
	if status == POStatusCancelled {
		return nil, fmt.Errorf("cannot pay a cancelled purchase order: %w", ErrInvalidStateTransition)
	}

	po, err := loadPO(ctx, tx, input.POID)
	if err != nil {
		return nil, err
	}
	if input.Amount.GreaterThan(po.BalanceDue) {
		return nil, fmt.Errorf("payment of %s exceeds balance due %s: %w",
			input.Amount, po.BalanceDue, ErrConstraintViolation)
	}

	var p SupplierPayment
	err = tx.QueryRow(ctx, `
		INSERT INTO supplier_payments (po_id, amount, method, notes, recorded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, po_id, amount, method, paid_at, notes, recorded_by
	`, input.POID, input.Amount, method, nullable(input.Notes), input.RecordedBy,
	).Scan(&p.ID, &p.POID, &p.Amount, &p.Method, &p.PaidAt, &p.Notes, &p.RecordedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert supplier payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier payment: %w", err)
	}
	return &p, nil
}

func (s *purchaseOrderService) RecordSupplierRefund(ctx context.Context, input SupplierRefundInput) (*SupplierRefund, *SupplierCredit, error) {
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, nil, fmt.Errorf("refund amount must be positive, got %s: %w", input.Amount, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var poID, supplierID int
	if err := tx.QueryRow(ctx, `
		SELECT pr.po_id, po.supplier_id
		FROM purchase_returns pr
		JOIN purchase_orders po ON po.id = pr.po_id
		WHERE pr.id = $1
	`, input.ReturnID).Scan(&poID, &supplierID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("purchase return %d: %w", input.ReturnID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to resolve purchase return: %w", err)
	}

	// Serialize refunds against the same return via the PO header lock.
	var locked int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM purchase_orders WHERE id = $1 FOR UPDATE", poID,
	).Scan(&locked); err != nil {
		return nil, nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}

	var returnValue decimal.Decimal
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(rl.quantity * pol.unit_cost), 0)
		FROM purchase_return_lines rl
		JOIN purchase_order_lines pol ON pol.id = rl.po_line_id
		WHERE rl.return_id = $1
	`, input.ReturnID).Scan(&returnValue); err != nil {
		return nil, nil, fmt.Errorf("failed to compute return value: %w", err)
	}

	var alreadyRefunded decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM supplier_refunds WHERE return_id = $1",
		input.ReturnID,
	).Scan(&alreadyRefunded); err != nil {
		return nil, nil, fmt.Errorf("failed to sum prior refunds: %w", err)
	}

	refundable := returnValue.Sub(alreadyRefunded)
	if input.Amount.GreaterThan(refundable) {
		return nil, nil, fmt.Errorf("refund of %s exceeds refundable %s on return %d: %w",
			input.Amount, refundable, input.ReturnID, ErrExcessiveRefund)
	}

	var r SupplierRefund
	err = tx.QueryRow(ctx, `
		INSERT INTO supplier_refunds (return_id, amount, notes, recorded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, return_id, amount, refunded_at, notes, recorded_by
	`, input.ReturnID, input.Amount, nullable(input.Notes), input.RecordedBy,
	).Scan(&r.ID, &r.ReturnID, &r.Amount, &r.RefundedAt, &r.Notes, &r.RecordedBy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert supplier refund: %w", err)
	}

	// Every refund becomes spendable credit with the supplier.
	var c SupplierCredit
	err = tx.QueryRow(ctx, `
		INSERT INTO supplier_credits (supplier_id, source_refund_id, initial_amount, balance, notes)
		VALUES ($1, $2, $3, $3, $4)
		RETURNING id, supplier_id, source_refund_id, initial_amount, balance, is_fully_used, issued_at, notes
	`, supplierID, r.ID, input.Amount, nullable(input.Notes),
	).Scan(&c.ID, &c.SupplierID, &c.SourceRefundID, &c.InitialAmount, &c.Balance,
		&c.IsFullyUsed, &c.IssuedAt, &c.Notes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue supplier credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit supplier refund: %w", err)
	}
	return &r, &c, nil
}

func (s *purchaseOrderService) ApplyCredit(ctx context.Context, input ApplyCreditInput) (*CreditApplication, error) {
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, fmt.Errorf("credit application amount must be positive, got %s: %w",
			input.Amount, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var creditSupplier int
	var balance decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT supplier_id, balance FROM supplier_credits WHERE id = $1 FOR UPDATE",
		input.CreditID,
	).Scan(&creditSupplier, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier credit %d: %w", input.CreditID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock supplier credit: %w", err)
	}

	var poSupplier int
	var status string
	if err := tx.QueryRow(ctx,
		"SELECT supplier_id, status FROM purchase_orders WHERE id = $1 FOR UPDATE",
		input.POID,
	).Scan(&poSupplier, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", input.POID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}
	if status == POStatusCancelled {
		return nil, fmt.Errorf("cannot apply credit to a cancelled purchase order: %w", ErrInvalidStateTransition)
	}
	if creditSupplier != poSupplier {
		return nil, fmt.Errorf("credit %d belongs to supplier %d, purchase order %d to supplier %d: %w",
			input.CreditID, creditSupplier, input.POID, poSupplier, ErrConstraintViolation)
	}

	if input.Amount.GreaterThan(balance) {
		return nil, fmt.Errorf("credit application of %s exceeds credit balance %s: %w",
			input.Amount, balance, ErrConstraintViolation)
	}
	po, err := loadPO(ctx, tx, input.POID)
	if err != nil {
		return nil, err
	}
	if input.Amount.GreaterThan(po.BalanceDue) {
		return nil, fmt.Errorf("credit application of %s exceeds balance due %s: %w",
			input.Amount, po.BalanceDue, ErrConstraintViolation)
	}

	var app CreditApplication
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_applications (credit_id, po_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id, credit_id, po_id, amount, applied_at
	`, input.CreditID, input.POID, input.Amount,
	).Scan(&app.ID, &app.CreditID, &app.POID, &app.Amount, &app.AppliedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert credit application: %w", err)
	}

	newBalance := balance.Sub(input.Amount)
	if _, err := tx.Exec(ctx,
		"UPDATE supplier_credits SET balance = $1, is_fully_used = $2 WHERE id = $3",
		newBalance, newBalance.IsZero(), input.CreditID,
	); err != nil {
		return nil, fmt.Errorf("failed to update credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit application: %w", err)
	}
	return &app, nil
}

func (s *purchaseOrderService) GetSupplierCredits(ctx context.Context, supplierID int, openOnly bool) ([]SupplierCredit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, source_refund_id, initial_amount, balance, is_fully_used, issued_at, notes
		FROM supplier_credits
		WHERE supplier_id = $1 AND (NOT $2 OR NOT is_fully_used)
		ORDER BY issued_at
	`, supplierID, openOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier credits: %w", err)
	}
	defer rows.Close()

	var credits []SupplierCredit
	for rows.Next() {
		var c SupplierCredit
		if err := rows.Scan(&c.ID, &c.SupplierID, &c.SourceRefundID, &c.InitialAmount,
			&c.Balance, &c.IsFullyUsed, &c.IssuedAt, &c.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan supplier credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}
