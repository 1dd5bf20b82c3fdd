package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickpay/internal/domain/product"
)

func newTestProduct(id, name string, price int64, stock int) product.Product {
	return product.Product{
		ID:      id,
		Name:    name,
		Price:   decimal.NewFromInt(price),
		Stock:   stock,
		Enabled: true,
	}
}

func lookupFrom(products ...*product.Product) LookupFunc {
	return func(id string) (product.Product, bool) {
		for _, p := range products {
			if p.ID == id {
				return *p, true
			}
		}
		return product.Product{}, false
	}
}

func TestAdjust_NeverExceedsStock(t *testing.T) {
	p := newTestProduct("1", "Coffee", 85, 3)
	var c Cart

	for range 3 {
		require.NoError(t, c.Adjust(p, 1))
	}
	err := c.Adjust(p, 1)
	require.ErrorIs(t, err, ErrStockExceeded)

	var se *StockExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Coffee", se.Name)
	assert.Equal(t, 3, se.Stock)
	assert.Equal(t, 3, c.Quantity("1"))
}

func TestAdjust_RejectsOversizedDelta(t *testing.T) {
	p := newTestProduct("1", "Coffee", 85, 5)
	var c Cart

	require.NoError(t, c.Adjust(p, 4))
	require.ErrorIs(t, c.Adjust(p, 2), ErrStockExceeded)
	assert.Equal(t, 4, c.Quantity("1"))
}

func TestAdjust_OutOfStock(t *testing.T) {
	p := newTestProduct("1", "Coffee", 85, 0)
	var c Cart

	require.ErrorIs(t, c.Adjust(p, 1), ErrStockExceeded)
	assert.True(t, c.Empty())
}

func TestAdjust_DisabledProduct(t *testing.T) {
	p := newTestProduct("1", "Coffee", 85, 5)
	var c Cart
	require.NoError(t, c.Adjust(p, 2))

	p.Enabled = false
	require.ErrorIs(t, c.Adjust(p, 1), ErrProductDisabled)

	// Stale lines can still be taken out.
	require.NoError(t, c.Adjust(p, -1))
	assert.Equal(t, 1, c.Quantity("1"))
}

func TestAdjust_RemovesLineAtZero(t *testing.T) {
	tests := []struct {
		name  string
		delta int
	}{
		{"exact", -2},
		{"below zero", -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProduct("1", "Coffee", 85, 5)
			var c Cart
			require.NoError(t, c.Adjust(p, 2))

			require.NoError(t, c.Adjust(p, tt.delta))
			assert.True(t, c.Empty())
			assert.Equal(t, 0, c.Quantity("1"))
		})
	}
}

func TestAdjust_DecrementMissingLineIsNoop(t *testing.T) {
	p := newTestProduct("1", "Coffee", 85, 5)
	var c Cart

	require.NoError(t, c.Adjust(p, -1))
	assert.True(t, c.Empty())
}

func TestLines_KeepInsertionOrder(t *testing.T) {
	a := newTestProduct("a", "A", 1, 10)
	b := newTestProduct("b", "B", 1, 10)
	var c Cart

	require.NoError(t, c.Adjust(b, 1))
	require.NoError(t, c.Adjust(a, 1))
	require.NoError(t, c.Adjust(b, 1))

	assert.Equal(t, []Line{{ProductID: "b", Quantity: 2}, {ProductID: "a", Quantity: 1}}, c.Lines())
}

func TestTotal_UsesLivePrices(t *testing.T) {
	coffee := newTestProduct("1", "Coffee", 85, 20)
	tea := newTestProduct("2", "Tea", 40, 20)
	var c Cart

	require.NoError(t, c.Adjust(coffee, 3))
	require.NoError(t, c.Adjust(tea, 1))

	lookup := lookupFrom(&coffee, &tea)
	assert.True(t, decimal.NewFromInt(295).Equal(c.Total(lookup)))

	coffee.Price = decimal.NewFromInt(90)
	assert.True(t, decimal.NewFromInt(310).Equal(c.Total(lookup)))
}

func TestTotal_SkipsDeletedProducts(t *testing.T) {
	coffee := newTestProduct("1", "Coffee", 85, 20)
	var c Cart
	require.NoError(t, c.Adjust(coffee, 2))

	assert.True(t, c.Total(lookupFrom()).IsZero())
}

func TestClear(t *testing.T) {
	p := newTestProduct("1", "Coffee", 85, 5)
	var c Cart
	require.NoError(t, c.Adjust(p, 2))

	c.Clear()
	assert.True(t, c.Empty())
	assert.Empty(t, c.Lines())
}
