package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bizpadi-api/internal/models"
)

const productColumns = `product_id, user_id, name, description, category, image_url,
	cost_price, quantity, created_at, updated_at`

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (product_id, user_id, name, description, category, image_url, cost_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		product.ID, product.OwnerID, product.Name, product.Description,
		product.Category, product.ImageURL, product.CostPrice, product.Quantity,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", translateError(err))
	}
	return nil
}

// GetProduct retrieves a product owned by ownerID
func (s *Store) GetProduct(ctx context.Context, ownerID, productID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE product_id = $1 AND user_id = $2",
		productID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", translateError(err))
	}
	return &product, nil
}

// LockProduct retrieves a product and holds a row lock on it until the transaction ends
func (t *Tx) LockProduct(ctx context.Context, ownerID, productID string) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE product_id = $1 AND user_id = $2 FOR UPDATE",
		productID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", translateError(err))
	}
	return &product, nil
}

// AdjustStock adds delta to the product quantity.
// The update is refused when the result would be negative.
func (t *Tx) AdjustStock(ctx context.Context, productID string, delta int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE product_id = $2 AND quantity + $1 >= 0",
		delta, productID)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", translateError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %s delta %d: %w", productID, delta, ErrNegativeStock)
	}
	return nil
}

// UpdateProduct rewrites the editable fields of a product, including a direct stock edit
func (t *Tx) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, category = $3, image_url = $4,
			cost_price = $5, quantity = $6, updated_at = NOW()
		WHERE product_id = $7 AND user_id = $8
		RETURNING updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		product.Name, product.Description, product.Category, product.ImageURL,
		product.CostPrice, product.Quantity, product.ID, product.OwnerID,
	).Scan(&product.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", translateError(err))
	}
	return nil
}

// DeleteProductSales removes every sale recorded against a product and returns them
func (t *Tx) DeleteProductSales(ctx context.Context, ownerID, productID string) ([]models.Sale, error) {
	query := `
		DELETE FROM sales s
		WHERE s.product_id = $1 AND s.user_id = $2
		RETURNING ` + saleColumns

	sales := []models.Sale{}
	if err := t.tx.SelectContext(ctx, &sales, query, productID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to delete product sales: %w", translateError(err))
	}
	return sales, nil
}

// DeleteProduct removes a product row
func (t *Tx) DeleteProduct(ctx context.Context, ownerID, productID string) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM products WHERE product_id = $1 AND user_id = $2", productID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", translateError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return nil
}
