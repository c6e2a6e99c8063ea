package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bizpadi-api/internal/models"
)

const saleColumns = `s.sale_id, s.user_id, s.product_id, s.quantity, s.cost_price,
	s.selling_price, s.total_price, s.profit_made, s.created_at, s.updated_at`

// SaleFilter selects a page of an owner's sales
type SaleFilter struct {
	OwnerID string
	Search  string
	Limit   int
	Offset  int
}

// InsertSale inserts a new sale row
func (t *Tx) InsertSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (sale_id, user_id, product_id, quantity, cost_price, selling_price, total_price, profit_made)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		sale.ID, sale.OwnerID, sale.ProductID, sale.Quantity,
		sale.CostPrice, sale.SellingPrice, sale.TotalPrice, sale.ProfitMade,
	).Scan(&sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", translateError(err))
	}
	return nil
}

// LockSale retrieves a sale and holds a row lock on it until the transaction ends
func (t *Tx) LockSale(ctx context.Context, ownerID, saleID string) (*models.Sale, error) {
	var sale models.Sale
	err := t.tx.GetContext(ctx, &sale,
		"SELECT "+saleColumns+" FROM sales s WHERE s.sale_id = $1 AND s.user_id = $2 FOR UPDATE",
		saleID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %s: %w", saleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock sale: %w", translateError(err))
	}
	return &sale, nil
}

// UpdateSale rewrites the mutable fields of a sale
func (t *Tx) UpdateSale(ctx context.Context, sale *models.Sale) error {
	query := `
		UPDATE sales
		SET product_id = $1, quantity = $2, cost_price = $3, selling_price = $4,
			total_price = $5, profit_made = $6, updated_at = NOW()
		WHERE sale_id = $7 AND user_id = $8
		RETURNING updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		sale.ProductID, sale.Quantity, sale.CostPrice, sale.SellingPrice,
		sale.TotalPrice, sale.ProfitMade, sale.ID, sale.OwnerID,
	).Scan(&sale.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sale %s: %w", sale.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", translateError(err))
	}
	return nil
}

// DeleteSale removes a sale row
func (t *Tx) DeleteSale(ctx context.Context, ownerID, saleID string) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM sales WHERE sale_id = $1 AND user_id = $2", saleID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", translateError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sale %s: %w", saleID, ErrNotFound)
	}
	return nil
}

// GetSale retrieves a sale joined with its product name
func (s *Store) GetSale(ctx context.Context, ownerID, saleID string) (*models.SaleWithProduct, error) {
	var sale models.SaleWithProduct
	err := s.db.GetContext(ctx, &sale,
		"SELECT "+saleColumns+", p.name AS product_name FROM sales s JOIN products p ON p.product_id = s.product_id WHERE s.sale_id = $1 AND s.user_id = $2",
		saleID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %s: %w", saleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", translateError(err))
	}
	return &sale, nil
}

// ListSales returns one page of an owner's sales, newest first, and the total match count
func (s *Store) ListSales(ctx context.Context, f SaleFilter) ([]models.SaleWithProduct, int, error) {
	where, args := buildSalesWhere(f)

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sales s JOIN products p ON p.product_id = s.product_id"+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}
	if count == 0 {
		return []models.SaleWithProduct{}, 0, nil
	}

	query := fmt.Sprintf(
		"SELECT %s, p.name AS product_name FROM sales s JOIN products p ON p.product_id = s.product_id%s ORDER BY s.created_at DESC, s.sale_id LIMIT $%d OFFSET $%d",
		saleColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	sales := []models.SaleWithProduct{}
	if err := s.db.SelectContext(ctx, &sales, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, count, nil
}

func buildSalesWhere(f SaleFilter) (string, []interface{}) {
	conditions := []string{"s.user_id = $1"}
	args := []interface{}{f.OwnerID}

	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
