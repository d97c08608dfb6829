package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/checkout"
)

func newSeeded() *Store {
	s := New()
	s.PutProduct(cart.Product{ID: "p1", StoreID: "s1", Name: "Kopi", Price: 15000, Stock: 5})
	s.PutProduct(cart.Product{ID: "p2", StoreID: "s2", Name: "Teh", Price: 8000, Stock: 2})
	s.PutCustomer(checkout.Customer{ID: "c1", Name: "Budi"})
	return s
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := newSeeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx checkout.Tx) error {
		require.NoError(t, tx.InsertSale(ctx, checkout.Sale{ID: "sale-1"}))
		require.NoError(t, tx.InsertSaleLine(ctx, checkout.SaleLine{SaleID: "sale-1", LineNo: 1, ProductID: "p1", Quantity: 2}))
		ok, err := tx.DecrementStock(ctx, "p1", 2)
		require.NoError(t, err)
		require.True(t, ok)
		stock, err := tx.Stock(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, 3, stock)
		require.NoError(t, tx.CreditCustomer(ctx, "c1", 30000, 3))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 5, p.Stock)
	c, err := s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	require.Zero(t, c.TotalSpent)
	require.Empty(t, s.Sales())
	_, err = s.GetSale(ctx, "sale-1")
	require.ErrorIs(t, err, checkout.ErrRecordNotFound)
}

func TestWithinTxAppliesOnSuccess(t *testing.T) {
	s := newSeeded()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx checkout.Tx) error {
		if err := tx.InsertSale(ctx, checkout.Sale{ID: "sale-1", Total: 30000}); err != nil {
			return err
		}
		if err := tx.InsertSaleLine(ctx, checkout.SaleLine{SaleID: "sale-1", LineNo: 1, ProductID: "p1", Quantity: 2}); err != nil {
			return err
		}
		if _, err := tx.DecrementStock(ctx, "p1", 2); err != nil {
			return err
		}
		return tx.CreditCustomer(ctx, "c1", 30000, 3)
	})
	require.NoError(t, err)

	p, _ := s.GetProduct(ctx, "p1")
	require.Equal(t, 3, p.Stock)
	c, _ := s.GetCustomer(ctx, "c1")
	require.EqualValues(t, 30000, c.TotalSpent)
	require.EqualValues(t, 3, c.LoyaltyPoints)
	sale, err := s.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
}

func TestDecrementStockIsConditional(t *testing.T) {
	s := newSeeded()
	ctx := context.Background()
	_ = s.WithinTx(ctx, func(ctx context.Context, tx checkout.Tx) error {
		ok, err := tx.DecrementStock(ctx, "p2", 3)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = tx.DecrementStock(ctx, "p2", 2)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = tx.DecrementStock(ctx, "p2", 1)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = tx.DecrementStock(ctx, "missing", 1)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = tx.DecrementStock(ctx, "p1", 0)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	p, _ := s.GetProduct(ctx, "p2")
	require.Zero(t, p.Stock)
}

func TestTxRejectsDanglingRows(t *testing.T) {
	s := newSeeded()
	ctx := context.Background()
	err := s.WithinTx(ctx, func(ctx context.Context, tx checkout.Tx) error {
		require.ErrorIs(t, tx.InsertSaleLine(ctx, checkout.SaleLine{SaleID: "nope", ProductID: "p1"}), checkout.ErrRecordNotFound)
		require.NoError(t, tx.InsertSale(ctx, checkout.Sale{ID: "sale-1"}))
		require.Error(t, tx.InsertSale(ctx, checkout.Sale{ID: "sale-1"}))
		require.ErrorIs(t, tx.InsertSaleLine(ctx, checkout.SaleLine{SaleID: "sale-1", ProductID: "ghost"}), checkout.ErrRecordNotFound)
		require.ErrorIs(t, tx.CreditCustomer(ctx, "ghost", 1, 0), checkout.ErrRecordNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestWithinTxDiscardsWhenContextEnds(t *testing.T) {
	s := newSeeded()
	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithinTx(ctx, func(_ context.Context, tx checkout.Tx) error {
		_, err := tx.DecrementStock(context.Background(), "p1", 1)
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)
	p, _ := s.GetProduct(context.Background(), "p1")
	require.Equal(t, 5, p.Stock)
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	s := newSeeded()
	ctx := context.Background()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinTx(ctx, func(ctx context.Context, tx checkout.Tx) error {
				ok, err := tx.DecrementStock(ctx, "p1", 2)
				if err != nil || !ok {
					return errors.New("short")
				}
				mu.Lock()
				wins++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 2, wins)
	p, _ := s.GetProduct(ctx, "p1")
	require.Equal(t, 1, p.Stock)
}

func TestListProductsAndCalls(t *testing.T) {
	s := newSeeded()
	require.Len(t, s.ListProducts(""), 2)
	only := s.ListProducts("s1")
	require.Len(t, only, 1)
	require.Equal(t, "p1", only[0].ID)

	require.Zero(t, s.Calls())
	_, _ = s.GetProduct(context.Background(), "p1")
	_, _ = s.GetCustomer(context.Background(), "x")
	require.Equal(t, 2, s.Calls())
}
