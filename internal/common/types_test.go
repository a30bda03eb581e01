package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	side, err := ParseSide('B')
	require.NoError(t, err)
	assert.Equal(t, Buy, side)

	side, err = ParseSide('S')
	require.NoError(t, err)
	assert.Equal(t, Sell, side)

	side, err = ParseSide('X')
	assert.ErrorIs(t, err, ErrInvalidSide)
	assert.Equal(t, SideUnknown, side)
}

func TestAggressorSign(t *testing.T) {
	assert.Equal(t, SellerInitiated, AggressorSign(Buy))
	assert.Equal(t, BuyerInitiated, AggressorSign(Sell))
}

func TestEventMask(t *testing.T) {
	mask := OrderBookUpdate | TradeEvent
	assert.True(t, mask.Has(TradeEvent))
	assert.False(t, mask.Has(Sweep))
	assert.Equal(t, byte('C'), Crossing.Byte())
}
