package memstore

import (
	"context"
	"errors"
	"testing"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateProduct(context.Background(), &models.Product{
		ID:        "p1",
		OwnerID:   "o1",
		Name:      "Rice",
		CostPrice: decimal.NewFromInt(5),
		Quantity:  4,
	}))
	return s
}

func TestRunInTxDiscardsChangesOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx store.LedgerTx) error {
		require.NoError(t, tx.AdjustStock(ctx, "p1", -3))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "o1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Quantity)
}

func TestAdjustStockRefusesNegative(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx store.LedgerTx) error {
		return tx.AdjustStock(ctx, "p1", -5)
	})
	assert.ErrorIs(t, err, store.ErrNegativeStock)
}

func TestFailOnQueuesFailures(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	first, second := errors.New("first"), errors.New("second")
	s.FailOn(OpLockProduct, first)
	s.FailOn(OpLockProduct, second)

	lock := func(tx store.LedgerTx) error {
		_, err := tx.LockProduct(ctx, "o1", "p1")
		return err
	}

	assert.ErrorIs(t, s.RunInTx(ctx, lock), first)
	assert.ErrorIs(t, s.RunInTx(ctx, lock), second)
	assert.NoError(t, s.RunInTx(ctx, lock))
	assert.Equal(t, 3, s.TxCount())
}

func TestLockProductScopedToOwner(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx store.LedgerTx) error {
		_, err := tx.LockProduct(ctx, "o2", "p1")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSalesClampsNegativeOffset(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(tx store.LedgerTx) error {
		return tx.InsertSale(ctx, &models.Sale{ID: "s1", OwnerID: "o1", ProductID: "p1", Quantity: 1})
	}))

	assert.NotPanics(t, func() {
		page, total, err := s.ListSales(ctx, store.SaleFilter{OwnerID: "o1", Limit: 20, Offset: -40})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, page, 1)
	})
}

func TestDeleteProductRemovesItsSales(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(tx store.LedgerTx) error {
		if err := tx.InsertSale(ctx, &models.Sale{ID: "s1", OwnerID: "o1", ProductID: "p1", Quantity: 1}); err != nil {
			return err
		}
		return tx.InsertSale(ctx, &models.Sale{ID: "s2", OwnerID: "o1", ProductID: "p1", Quantity: 2})
	}))

	var removed []models.Sale
	require.NoError(t, s.RunInTx(ctx, func(tx store.LedgerTx) error {
		var err error
		if removed, err = tx.DeleteProductSales(ctx, "o1", "p1"); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, "o1", "p1")
	}))
	require.Len(t, removed, 2)
	assert.Equal(t, "s1", removed[0].ID)

	_, err := s.GetProduct(ctx, "o1", "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetSale(ctx, "o1", "s2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProductFailureKeepsSales(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.RunInTx(ctx, func(tx store.LedgerTx) error {
		return tx.InsertSale(ctx, &models.Sale{ID: "s1", OwnerID: "o1", ProductID: "p1", Quantity: 1})
	}))

	s.FailOn(OpDeleteProduct, errors.New("boom"))
	err := s.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := tx.DeleteProductSales(ctx, "o1", "p1"); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, "o1", "p1")
	})
	require.Error(t, err)

	_, err = s.GetSale(ctx, "o1", "s1")
	assert.NoError(t, err)
}

func TestClientUniquePerOwner(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateClient(ctx, &models.Client{ID: "c1", OwnerID: "o1", Email: "a@x.com", PhoneNumber: "1"}))

	err := s.CreateClient(ctx, &models.Client{ID: "c2", OwnerID: "o1", Email: "a@x.com", PhoneNumber: "2"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, s.CreateClient(ctx, &models.Client{ID: "c3", OwnerID: "o2", Email: "a@x.com", PhoneNumber: "1"}))

	require.NoError(t, s.CreateClient(ctx, &models.Client{ID: "c4", OwnerID: "o1", Email: "b@x.com", PhoneNumber: "3"}))
	err = s.UpdateClient(ctx, &models.Client{ID: "c4", OwnerID: "o1", Email: "b@x.com", PhoneNumber: "1"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, s.DeleteClient(ctx, "o1", "c1"))
	_, err = s.GetClient(ctx, "o1", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
