package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/catalog"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
	"github.com/noah-isme/kasir/internal/receipt"
	"github.com/noah-isme/kasir/internal/session"
	"github.com/noah-isme/kasir/internal/store/memory"
)

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.PutProduct(cart.Product{ID: "A", StoreID: "s1", Name: "Kopi", Price: 10_000, Stock: 5})
	st.PutProduct(cart.Product{ID: "B", StoreID: "s1", Name: "Roti", Price: 25_000, Stock: 1})
	st.PutCustomer(checkout.Customer{ID: "c1", Name: "Sari"})
	coord := checkout.New(st)
	coord.Loyalty = pricing.LoyaltyRule{SpendPerPoint: 10_000, PointsPerStep: 1}
	sess := session.New(session.Config{
		StoreID:     "s1",
		CashierName: "Rina",
		Catalog:     catalog.NewService(catalog.Config{Products: st}),
		Checkout:    coord,
		Receipt:     receipt.StoreInfo{Name: "Toko", Currency: pricing.IDR},
	})
	var out bytes.Buffer
	r := newREPL(sess, &out, pricing.IDR)
	r.gatherer = prometheus.NewRegistry()
	return r, &out, st
}

func TestREPLSellsAndPrintsReceipt(t *testing.T) {
	r, out, st := newTestREPL(t)
	script := strings.Join([]string{
		"add A 2",
		"add B",
		"total discount=5000 tax=2000",
		"pay cash customer=c1 discount=5000 tax=2000",
		"show",
		"quit",
	}, "\n")
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	text := out.String()
	require.Contains(t, text, "total 42,000")
	require.Contains(t, text, "TOTAL IDR                         42,000\n")
	require.Contains(t, text, "Points earned                         +4\n")
	require.Contains(t, text, "cart is empty")
	require.Len(t, st.Sales(), 1)
}

func TestREPLReportsErrors(t *testing.T) {
	r, out, st := newTestREPL(t)
	st.PutProduct(cart.Product{ID: "B", StoreID: "s1", Name: "Roti", Price: 25_000, Stock: 1})
	script := strings.Join([]string{
		"pay cash",
		"add A x",
		"add B",
		"frobnicate",
		"total tax=abc",
	}, "\n")
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	text := out.String()
	require.Contains(t, text, "error: [EMPTY_CART]")
	require.Contains(t, text, "error: [INVALID_QUANTITY]")
	require.Contains(t, text, `unknown command "frobnicate"`)
	require.Contains(t, text, "error: [INVALID_NUMERIC_INPUT]")
}

func TestREPLStockShortageMessage(t *testing.T) {
	r, out, st := newTestREPL(t)
	script := "add A 5\n"
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))
	st.PutProduct(cart.Product{ID: "A", StoreID: "s1", Name: "Kopi", Price: 10_000, Stock: 4})
	require.NoError(t, r.run(context.Background(), strings.NewReader("pay card\nshow\n")))
	require.Contains(t, out.String(), "error: [INSUFFICIENT_STOCK] A: only 4 left, 5 requested")
	require.Contains(t, out.String(), "Kopi")
	require.Empty(t, st.Sales())
}

func TestKeyValues(t *testing.T) {
	kv, err := keyValues([]string{"Customer=c1", "tax=11%"}, "customer", "discount", "tax")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"customer": "c1", "tax": "11%"}, kv)

	_, err = keyValues([]string{"junk"}, "discount", "tax")
	require.ErrorContains(t, err, "key=value")
	_, err = keyValues([]string{"disocunt=5000"}, "discount", "tax")
	require.ErrorContains(t, err, `unknown option "disocunt"`)
	_, err = keyValues([]string{"customer=c1"}, "discount", "tax")
	require.Error(t, err)
	_, err = keyValues([]string{"tax=1", "TAX=2"}, "discount", "tax")
	require.ErrorContains(t, err, "twice")
}

func TestREPLRefusesMistypedAdjustments(t *testing.T) {
	r, out, st := newTestREPL(t)
	script := strings.Join([]string{
		"add A 2",
		"pay cash disocunt=5000",
		"pay cash discount 5000",
		"total dicount=1",
		"show",
	}, "\n")
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	text := out.String()
	require.Contains(t, text, `error: unknown option "disocunt"`)
	require.Contains(t, text, `error: option "discount" must be written as key=value`)
	require.Contains(t, text, `error: unknown option "dicount"`)
	require.Empty(t, st.Sales())

	a, err := st.GetProduct(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, 5, a.Stock)
	require.Contains(t, text, "Kopi")
}
