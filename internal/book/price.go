package book

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FractionalPrice is the decimals marker for instruments quoted in 1/256ths.
const FractionalPrice = 256

var fractionDivisor = decimal.NewFromInt(FractionalPrice)

// NormalizePrice scales a raw wire price: raw / 10^decimals, or raw / 256 for
// instruments traded in fractions.
func NormalizePrice(raw uint64, decimals uint16) decimal.Decimal {
	price := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0)
	if decimals == FractionalPrice {
		return price.Div(fractionDivisor)
	}
	return price.Shift(-int32(decimals))
}

// Price scales a raw price with the book's decimals.
func (book *OrderBook) Price(raw uint64) decimal.Decimal {
	return NormalizePrice(raw, book.decimals)
}
