package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPriceLevelIndex_InsertAndBestPrice_Asks(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("50600"), "a1", d("0.1"), 1)
	idx.Insert(d("50500"), "a2", d("0.2"), 2)

	best, ok := idx.BestPrice()
	require.True(t, ok)
	assert.True(t, best.Equal(d("50500")))
}

func TestPriceLevelIndex_InsertAndBestPrice_Bids(t *testing.T) {
	idx := NewPriceLevelIndex(true)
	idx.Insert(d("50500"), "b1", d("0.1"), 1)
	idx.Insert(d("50600"), "b2", d("0.2"), 2)

	best, ok := idx.BestPrice()
	require.True(t, ok)
	assert.True(t, best.Equal(d("50600")))
}

func TestPriceLevelIndex_FIFOWithinLevel(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("100"), "first", d("1"), 1)
	idx.Insert(d("100"), "second", d("1"), 2)

	head, ok := idx.HeadOrder(d("100"))
	require.True(t, ok)
	assert.Equal(t, "first", head.OrderID)
}

func TestPriceLevelIndex_RemoveDeletesEmptyLevel(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("100"), "only", d("1"), 1)
	assert.True(t, idx.Remove(d("100"), "only"))
	assert.Equal(t, 0, idx.Len())
	_, ok := idx.BestPrice()
	assert.False(t, ok)
}

func TestPriceLevelIndex_DecrementHeadPopsWhenExhausted(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("100"), "o1", d("1"), 1)
	idx.DecrementHead(d("100"), d("1"))
	assert.Equal(t, 0, idx.Len())
}

func TestPriceLevelIndex_SkipHeadRotatesFIFO(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("100"), "o1", d("1"), 1)
	idx.Insert(d("100"), "o2", d("1"), 2)
	idx.SkipHead(d("100"))

	head, _ := idx.HeadOrder(d("100"))
	assert.Equal(t, "o2", head.OrderID)
}

func TestPriceLevelIndex_QuantityAtOrBetter(t *testing.T) {
	idx := NewPriceLevelIndex(false) // asks
	idx.Insert(d("100"), "o1", d("1"), 1)
	idx.Insert(d("101"), "o2", d("2"), 2)
	idx.Insert(d("102"), "o3", d("3"), 3)

	total := idx.QuantityAtOrBetter(d("101"))
	assert.True(t, total.Equal(d("3")))
}

func TestPriceLevelIndex_TopLevelsAggregatesNoOrderIDs(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("100"), "o1", d("1"), 1)
	idx.Insert(d("100"), "o2", d("1"), 2)
	idx.Insert(d("101"), "o3", d("1"), 3)

	levels := idx.TopLevels(10)
	require.Len(t, levels, 2)
	assert.True(t, levels[0].Price.Equal(d("100")))
	assert.True(t, levels[0].TotalQuantity.Equal(d("2")))
	assert.Nil(t, levels[0].Orders)
}

func TestPriceLevelIndex_CloneIsIndependent(t *testing.T) {
	idx := NewPriceLevelIndex(false)
	idx.Insert(d("100"), "o1", d("1"), 1)

	clone := idx.Clone()
	idx.Insert(d("101"), "o2", d("1"), 2)

	assert.Equal(t, 1, clone.Len())
	assert.Equal(t, 2, idx.Len())
}
