package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"bizpadi-api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSalesWhere(t *testing.T) {
	where, args := buildSalesWhere(SaleFilter{OwnerID: "owner-1"})
	assert.Equal(t, " WHERE s.user_id = $1", where)
	assert.Equal(t, []interface{}{"owner-1"}, args)

	where, args = buildSalesWhere(SaleFilter{OwnerID: "owner-1", Search: "50%_off"})
	assert.Equal(t, " WHERE s.user_id = $1 AND p.name ILIKE $2", where)
	assert.Equal(t, []interface{}{"owner-1", `%50\%\_off%`}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "rice", escapeLike("rice"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, `\%\_`, escapeLike("%_"))
}

func TestTranslateError(t *testing.T) {
	conflict := translateError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	assert.True(t, errors.Is(conflict, ErrTxConflict))

	deadlock := translateError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	assert.True(t, errors.Is(deadlock, ErrTxConflict))

	check := translateError(&pq.Error{Code: "23514", Constraint: "products_quantity_check", Message: "violates check constraint"})
	assert.True(t, errors.Is(check, ErrNegativeStock))

	price := translateError(&pq.Error{Code: "23514", Constraint: "sales_selling_price_check", Message: "violates check constraint"})
	assert.True(t, errors.Is(price, ErrInvalidValue))
	assert.False(t, errors.Is(price, ErrNegativeStock))

	overflow := translateError(&pq.Error{Code: "22003", Message: "numeric field overflow"})
	assert.True(t, errors.Is(overflow, ErrInvalidValue))

	dup := translateError(&pq.Error{Code: "23505", Constraint: "clients_user_id_email_key"})
	assert.True(t, errors.Is(dup, ErrDuplicate))

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))
}

func integrationStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSaleTransactionRollback(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()

	product := &models.Product{
		ID:        uuid.New().String(),
		OwnerID:   uuid.New().String(),
		Name:      "Test Rice",
		CostPrice: decimal.NewFromInt(5),
		Quantity:  10,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	boom := errors.New("forced failure")
	err := store.RunInTx(ctx, func(tx LedgerTx) error {
		if err := tx.AdjustStock(ctx, product.ID, -3); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	retrieved, err := store.GetProduct(ctx, product.OwnerID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, retrieved.Quantity)
}

func TestAdjustStockRefusesNegative(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()

	product := &models.Product{
		ID:        uuid.New().String(),
		OwnerID:   uuid.New().String(),
		Name:      "Test Beans",
		CostPrice: decimal.NewFromInt(2),
		Quantity:  2,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	err := store.RunInTx(ctx, func(tx LedgerTx) error {
		return tx.AdjustStock(ctx, product.ID, -3)
	})
	assert.ErrorIs(t, err, ErrNegativeStock)
}

func TestListSalesSearch(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	owner := uuid.New().String()

	product := &models.Product{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Name:      "Golden Penny Semovita",
		CostPrice: decimal.NewFromInt(5),
		Quantity:  10,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	err := store.RunInTx(ctx, func(tx LedgerTx) error {
		return tx.InsertSale(ctx, &models.Sale{
			ID:           uuid.New().String(),
			OwnerID:      owner,
			ProductID:    product.ID,
			Quantity:     1,
			CostPrice:    decimal.NewFromInt(5),
			SellingPrice: decimal.NewFromInt(8),
			TotalPrice:   decimal.NewFromInt(8),
			ProfitMade:   decimal.NewFromInt(3),
		})
	})
	require.NoError(t, err)

	sales, total, err := store.ListSales(ctx, SaleFilter{OwnerID: owner, Search: "SEMOVITA", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, sales, 1)
	assert.Equal(t, product.Name, sales[0].ProductName)

	_, total, err = store.ListSales(ctx, SaleFilter{OwnerID: owner, Search: "yam", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDeleteProductCascadesSales(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	owner := uuid.New().String()

	product := &models.Product{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Name:      "Test Garri",
		CostPrice: decimal.NewFromInt(3),
		Quantity:  5,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	saleID := uuid.New().String()
	require.NoError(t, store.RunInTx(ctx, func(tx LedgerTx) error {
		return tx.InsertSale(ctx, &models.Sale{
			ID:           saleID,
			OwnerID:      owner,
			ProductID:    product.ID,
			Quantity:     1,
			CostPrice:    decimal.NewFromInt(3),
			SellingPrice: decimal.NewFromInt(4),
			TotalPrice:   decimal.NewFromInt(4),
			ProfitMade:   decimal.NewFromInt(1),
		})
	}))

	var removed []models.Sale
	require.NoError(t, store.RunInTx(ctx, func(tx LedgerTx) error {
		var err error
		if removed, err = tx.DeleteProductSales(ctx, owner, product.ID); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, owner, product.ID)
	}))
	require.Len(t, removed, 1)
	assert.Equal(t, saleID, removed[0].ID)

	_, err := store.GetSale(ctx, owner, saleID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientUniqueConstraints(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	owner := uuid.New().String()

	client := &models.Client{ID: uuid.New().String(), OwnerID: owner, Name: "Ada", Email: "ada@example.com", PhoneNumber: "0803", Address: "Lagos"}
	require.NoError(t, store.CreateClient(ctx, client))

	dup := *client
	dup.ID = uuid.New().String()
	dup.PhoneNumber = "0805"
	assert.ErrorIs(t, store.CreateClient(ctx, &dup), ErrDuplicate)

	require.NoError(t, store.DeleteClient(ctx, owner, client.ID))
	assert.ErrorIs(t, store.DeleteClient(ctx, owner, client.ID), ErrNotFound)
}
