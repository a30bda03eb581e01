package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		raw      uint64
		decimals uint16
		want     string
	}{
		{raw: 8000, decimals: 0, want: "8000"},
		{raw: 1234500, decimals: 4, want: "123.45"},
		{raw: 1995, decimals: 2, want: "19.95"},
		{raw: 640, decimals: FractionalPrice, want: "2.5"},
		{raw: 1, decimals: FractionalPrice, want: "0.00390625"},
	}
	for _, c := range cases {
		got := NormalizePrice(c.raw, c.decimals)
		assert.True(t, decimal.RequireFromString(c.want).Equal(got), "raw %d dec %d: got %s", c.raw, c.decimals, got)
	}
}

func TestOrderBook_Price(t *testing.T) {
	book := New("GARAN", 0, 3, 0)
	assert.Equal(t, "12.345", book.Price(12345).String())

	book.SetDecimalsForPrice(FractionalPrice)
	assert.Equal(t, "0.5", book.Price(128).String())
}
