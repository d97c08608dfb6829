package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir/internal/pricing"
)

func product(id string, price pricing.Money, stock int) Product {
	return Product{ID: id, StoreID: "store-1", Name: "Product " + id, Price: price, Stock: stock}
}

func TestAddItemClampsToStock(t *testing.T) {
	c := New()
	p := product("A", 10_000, 5)
	for i := 0; i < 3; i++ {
		_, err := c.AddItem(p, 2)
		require.NoError(t, err)
	}
	line, ok := c.Line("A")
	require.True(t, ok)
	require.Equal(t, 5, line.Quantity)
	require.Equal(t, 1, c.Len())
}

func TestAddItemNeverExceedsStock(t *testing.T) {
	for stock := 1; stock <= 8; stock++ {
		for qty := 1; qty <= 4; qty++ {
			c := New()
			p := product("P", 1_000, stock)
			for i := 0; i < 10; i++ {
				line, err := c.AddItem(p, qty)
				require.NoError(t, err)
				require.LessOrEqual(t, line.Quantity, stock)
			}
		}
	}
}

func TestAddItemOutOfStockIsNoop(t *testing.T) {
	c := New()
	_, err := c.AddItem(product("Z", 500, 0), 1)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	require.True(t, c.IsEmpty())
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	c := New()
	_, err := c.AddItem(product("A", 1, 3), 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.True(t, c.IsEmpty())
}

func TestAddKeepsInsertionOrderAndUniqueness(t *testing.T) {
	c := New()
	_, _ = c.Add(product("A", 100, 9))
	_, _ = c.Add(product("B", 200, 9))
	_, _ = c.Add(product("A", 100, 9))
	lines := c.Lines()
	require.Len(t, lines, 2)
	require.Equal(t, "A", lines[0].ProductID)
	require.Equal(t, 2, lines[0].Quantity)
	require.Equal(t, "B", lines[1].ProductID)
}

func TestAddKeepsPriceSnapshot(t *testing.T) {
	c := New()
	_, _ = c.AddItem(product("A", 100, 9), 1)
	_, _ = c.AddItem(product("A", 999, 9), 1)
	line, _ := c.Line("A")
	require.Equal(t, pricing.Money(100), line.UnitPrice)
	require.Equal(t, pricing.Money(200), line.Total())
}

func TestRemoveItem(t *testing.T) {
	c := New()
	_, _ = c.Add(product("A", 100, 9))
	_, _ = c.Add(product("B", 100, 9))
	c.RemoveItem("A")
	c.RemoveItem("missing")
	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "B", lines[0].ProductID)
}

func TestSetQuantity(t *testing.T) {
	c := New()
	_, _ = c.Add(product("A", 100, 4))

	_, err := c.SetQuantity("A", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = c.SetQuantity("A", -2)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	line, err := c.SetQuantity("A", 3)
	require.NoError(t, err)
	require.Equal(t, 3, line.Quantity)

	line, err = c.SetQuantity("A", 40)
	require.NoError(t, err)
	require.Equal(t, 4, line.Quantity)

	_, err = c.SetQuantity("ghost", 1)
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestSetQuantityRecreatesKnownLine(t *testing.T) {
	c := New()
	_, _ = c.Add(product("A", 100, 4))
	c.RemoveItem("A")
	line, err := c.SetQuantity("A", 2)
	require.NoError(t, err)
	require.Equal(t, 2, line.Quantity)
	require.Equal(t, 1, c.Len())
}

func TestRefreshReclampsLine(t *testing.T) {
	c := New()
	_, _ = c.AddItem(product("A", 100, 10), 6)
	require.True(t, c.Refresh(product("A", 150, 4)))
	line, _ := c.Line("A")
	require.Equal(t, 4, line.Quantity)
	require.Equal(t, pricing.Money(100), line.UnitPrice)

	require.False(t, c.Refresh(product("A", 150, 8)))
	require.True(t, c.Refresh(product("A", 150, 0)))
	require.True(t, c.IsEmpty())
}

func TestSubtotalAndClear(t *testing.T) {
	c := New()
	_, _ = c.AddItem(product("A", 10_000, 10), 2)
	_, _ = c.AddItem(product("B", 25_000, 10), 1)
	require.Equal(t, pricing.Money(45_000), c.Subtotal())
	require.Equal(t, pricing.Money(45_000), c.Subtotal())
	c.Clear()
	require.True(t, c.IsEmpty())
	require.Equal(t, pricing.Money(0), c.Subtotal())
}

func TestLinesReturnsCopy(t *testing.T) {
	c := New()
	_, _ = c.AddItem(product("A", 10, 10), 2)
	lines := c.Lines()
	lines[0].Quantity = 99
	line, _ := c.Line("A")
	require.Equal(t, 2, line.Quantity)
}
