package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/catalog"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
	"github.com/noah-isme/kasir/internal/receipt"
	"github.com/noah-isme/kasir/internal/store/memory"
)

func newSession(t *testing.T) (*Session, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.PutProduct(cart.Product{ID: "A", StoreID: "s1", Name: "Kopi", Price: 10_000, Stock: 10})
	st.PutProduct(cart.Product{ID: "B", StoreID: "s1", Name: "Roti", Price: 25_000, Stock: 1})
	st.PutProduct(cart.Product{ID: "Z", StoreID: "s1", Name: "Habis", Price: 5_000, Stock: 0})

	coord := checkout.New(st)
	coord.Now = func() time.Time { return time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC) }
	s := New(Config{
		StoreID:     "s1",
		CashierID:   "c-1",
		CashierName: "Rina",
		Catalog:     catalog.NewService(catalog.Config{Products: st}),
		Checkout:    coord,
		Receipt:     receipt.StoreInfo{Name: "Toko", Currency: pricing.IDR},
	})
	return s, st
}

func TestSessionScenario(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "A", "2")
	require.NoError(t, err)
	view, err := s.Add(ctx, "B", "")
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.Equal(t, pricing.Money(45_000), view.Summary.Subtotal)

	view, err = s.Totals(Adjustments{Discount: "5000", Tax: "2000"})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(42_000), view.Summary.Total)

	res, err := s.Checkout(ctx, Payment{Method: "cash", Adjustments: Adjustments{Discount: "5000", Tax: "2000"}})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(42_000), res.Sale.Total)
	require.Contains(t, res.Receipt, "TOTAL IDR                         42,000\n")
	require.Contains(t, res.Receipt, "Cashier : Rina\n")
	require.Empty(t, s.View().Lines)

	reprint, err := s.Reprint(ctx, res.Sale.ID)
	require.NoError(t, err)
	require.Equal(t, res.Receipt, reprint)
	require.Len(t, st.Sales(), 1)
}

func TestSessionPercentTax(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Add(context.Background(), "A", "5")
	require.NoError(t, err)
	view, err := s.Totals(Adjustments{Discount: "5000", Tax: "11%"})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(4_950), view.Summary.Tax)
	require.Equal(t, pricing.Money(49_950), view.Summary.Total)
}

func TestSessionRejectsMalformedInput(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "A", "two")
	require.ErrorIs(t, err, checkout.ErrInvalidQuantity)
	_, err = s.Add(ctx, "A", "-1")
	require.ErrorIs(t, err, checkout.ErrInvalidQuantity)
	_, err = s.Add(ctx, "A", "1")
	require.NoError(t, err)
	_, err = s.SetQuantity("A", "0")
	require.ErrorIs(t, err, checkout.ErrInvalidQuantity)

	_, err = s.Totals(Adjustments{Discount: "abc"})
	require.ErrorIs(t, err, checkout.ErrInvalidNumeric)
	_, err = s.Totals(Adjustments{Tax: "-5"})
	require.ErrorIs(t, err, checkout.ErrInvalidNumeric)
	_, err = s.Checkout(ctx, Payment{Method: "cash", Adjustments: Adjustments{Tax: "x%"}})
	require.ErrorIs(t, err, checkout.ErrInvalidNumeric)
	require.Len(t, s.View().Lines, 1)

	_, err = s.Add(ctx, "nope", "1")
	require.ErrorIs(t, err, cart.ErrUnknownProduct)
}

func TestSessionStockWarnings(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	view, err := s.Add(ctx, "Z", "")
	require.NoError(t, err)
	require.Contains(t, view.Warning, "out of stock")
	require.Empty(t, view.Lines)

	view, err = s.Add(ctx, "B", "3")
	require.NoError(t, err)
	require.Contains(t, view.Warning, "limited to 1")
	require.Equal(t, 1, view.Lines[0].Quantity)

	view, err = s.SetQuantity("B", "4")
	require.NoError(t, err)
	require.Contains(t, view.Warning, "limited to 1")

	view = s.Remove("B")
	require.Empty(t, view.Lines)
}

func TestSessionFailedCheckoutKeepsCart(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	_, err := s.Add(ctx, "B", "1")
	require.NoError(t, err)
	st.PutProduct(cart.Product{ID: "B", StoreID: "s1", Name: "Roti", Price: 25_000, Stock: 0})

	_, err = s.Checkout(ctx, Payment{Method: "cash"})
	require.ErrorIs(t, err, checkout.ErrInsufficientStock)
	require.Len(t, s.View().Lines, 1)

	s.Clear()
	_, err = s.Checkout(ctx, Payment{Method: "cash"})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestSessionSelectStore(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	_, err := s.Add(ctx, "A", "1")
	require.NoError(t, err)

	view := s.SelectStore("")
	require.Empty(t, view.Lines)
	_, err = s.Add(ctx, "A", "1")
	require.NoError(t, err)
	_, err = s.Checkout(ctx, Payment{Method: "cash"})
	require.ErrorIs(t, err, checkout.ErrStoreNotSelected)
}
