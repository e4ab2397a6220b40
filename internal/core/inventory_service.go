package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) StockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, quantity_on_hand, low_stock_threshold,
		       quantity_on_hand <= low_stock_threshold AS is_low
		FROM products
		WHERE is_active AND is_stockable
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductName, &sl.Category,
			&sl.QuantityOnHand, &sl.LowStockThreshold, &sl.IsLow); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *inventoryService) LowStock(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, quantity_on_hand, low_stock_threshold, true
		FROM products
		WHERE is_active AND is_stockable AND quantity_on_hand <= low_stock_threshold
		ORDER BY quantity_on_hand, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock products: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductName, &sl.Category,
			&sl.QuantityOnHand, &sl.LowStockThreshold, &sl.IsLow); err != nil {
			return nil, fmt.Errorf("failed to scan low stock product: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

var adjustmentReasons = map[string]bool{
	AdjustmentReasonDamaged:      true,
	AdjustmentReasonExpired:      true,
	AdjustmentReasonStockTake:    true,
	AdjustmentReasonInitialStock: true,
	AdjustmentReasonOther:        true,
}

func (s *inventoryService) Adjust(ctx context.Context, input StockAdjustmentInput) (*StockAdjustment, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("adjustment quantity must be positive, got %d: %w", input.Quantity, ErrConstraintViolation)
	}
	if input.AdjustmentType != AdjustmentAddition && input.AdjustmentType != AdjustmentSubtraction {
		return nil, fmt.Errorf("unknown adjustment type %q: %w", input.AdjustmentType, ErrConstraintViolation)
	}
	if !adjustmentReasons[input.Reason] {
		return nil, fmt.Errorf("unknown adjustment reason %q: %w", input.Reason, ErrConstraintViolation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if input.AdjustmentType == AdjustmentAddition {
		err = s.RestockTx(ctx, tx, input.ProductID, input.Quantity)
	} else {
		err = s.DeductTx(ctx, tx, input.ProductID, input.Quantity)
	}
	if err != nil {
		return nil, err
	}

	var adj StockAdjustment
	err = tx.QueryRow(ctx, `
		INSERT INTO stock_adjustments (product_id, adjustment_type, quantity, reason, notes, adjusted_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, product_id, adjustment_type, quantity, reason, notes, adjusted_at, adjusted_by
	`, input.ProductID, input.AdjustmentType, input.Quantity, input.Reason,
		nullable(input.Notes), input.AdjustedBy,
	).Scan(&adj.ID, &adj.ProductID, &adj.AdjustmentType, &adj.Quantity, &adj.Reason,
		&adj.Notes, &adj.AdjustedAt, &adj.AdjustedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stock adjustment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return &adj, nil
}

func (s *inventoryService) Adjustments(ctx context.Context, productID int) ([]StockAdjustment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sa.id, sa.product_id, p.name, sa.adjustment_type, sa.quantity,
		       sa.reason, sa.notes, sa.adjusted_at, sa.adjusted_by
		FROM stock_adjustments sa
		JOIN products p ON p.id = sa.product_id
		WHERE $1 = 0 OR sa.product_id = $1
		ORDER BY sa.adjusted_at DESC, sa.id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []StockAdjustment
	for rows.Next() {
		var adj StockAdjustment
		if err := rows.Scan(&adj.ID, &adj.ProductID, &adj.ProductName, &adj.AdjustmentType,
			&adj.Quantity, &adj.Reason, &adj.Notes, &adj.AdjustedAt, &adj.AdjustedBy); err != nil {
			return nil, fmt.Errorf("failed to scan stock adjustment: %w", err)
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

// ConsumeTx decrements stock with a conditional update. Zero rows affected
// means either the product does not exist or the stock would have gone
// negative; the follow-up SELECT distinguishes the two.
func (s *inventoryService) ConsumeTx(ctx context.Context, tx pgx.Tx, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("consume quantity must be positive, got %d: %w", qty, ErrConstraintViolation)
	}
	return decrementStock(ctx, tx, productID, qty, "consume")
}

func (s *inventoryService) RestockTx(ctx context.Context, tx pgx.Tx, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("restock quantity must be positive, got %d: %w", qty, ErrConstraintViolation)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET quantity_on_hand = quantity_on_hand + $1, updated_at = NOW()
		WHERE id = $2 AND is_stockable
	`, qty, productID)
	if err != nil {
		return fmt.Errorf("failed to restock product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stockable product %d: %w", productID, ErrNotFound)
	}
	return nil
}

func (s *inventoryService) DeductTx(ctx context.Context, tx pgx.Tx, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("deduct quantity must be positive, got %d: %w", qty, ErrConstraintViolation)
	}
	return decrementStock(ctx, tx, productID, qty, "deduct")
}

func decrementStock(ctx context.Context, tx pgx.Tx, productID, qty int, op string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET quantity_on_hand = quantity_on_hand - $1, updated_at = NOW()
		WHERE id = $2 AND is_stockable AND quantity_on_hand >= $1
	`, qty, productID)
	if err != nil {
		return fmt.Errorf("failed to %s stock for product %d: %w", op, productID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var onHand int
	err = tx.QueryRow(ctx,
		"SELECT quantity_on_hand FROM products WHERE id = $1 AND is_stockable",
		productID,
	).Scan(&onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("stockable product %d: %w", productID, ErrNotFound)
		}
		return fmt.Errorf("failed to check stock for product %d: %w", productID, err)
	}
	return fmt.Errorf("product %d has %d on hand, need %d: %w", productID, onHand, qty, ErrInsufficientStock)
}
