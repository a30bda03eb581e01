package common

import (
	"errors"
	"fmt"
)

var ErrInvalidSide = errors.New("invalid side")

type Side uint8

const (
	// SideUnknown is returned by lookups of orders the book does not know.
	SideUnknown Side = iota
	Buy
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide maps an ITCH buy/sell indicator onto a Side.
func ParseSide(c byte) (Side, error) {
	switch c {
	case 'B':
		return Buy, nil
	case 'S':
		return Sell, nil
	default:
		return SideUnknown, fmt.Errorf("%w: %q", ErrInvalidSide, c)
	}
}

type TradingState uint8

const (
	Unknown TradingState = iota
	Halted
	Paused
	QuotationOnly
	Trading
	Auction
)

func (s TradingState) String() string {
	switch s {
	case Halted:
		return "halted"
	case Paused:
		return "paused"
	case QuotationOnly:
		return "quotation-only"
	case Trading:
		return "trading"
	case Auction:
		return "auction"
	default:
		return "unknown"
	}
}

type TradeSign uint8

const (
	BuyerInitiated TradeSign = iota
	SellerInitiated
	Crossing
	NonDisplayable
)

// Byte is the one-letter code used in trade traces.
func (s TradeSign) Byte() byte {
	switch s {
	case BuyerInitiated:
		return 'B'
	case SellerInitiated:
		return 'S'
	case Crossing:
		return 'C'
	case NonDisplayable:
		return 'N'
	default:
		return '?'
	}
}

// AggressorSign derives the trade sign from the side of the resting order
// that was executed. An executed buy order means a seller took liquidity.
func AggressorSign(resting Side) TradeSign {
	if resting == Buy {
		return SellerInitiated
	}
	return BuyerInitiated
}

type EventMask uint32

const (
	OrderBookUpdate EventMask = 1 << iota
	TradeEvent
	Sweep
	Opened
	Closed
)

func (m EventMask) Has(flag EventMask) bool {
	return m&flag != 0
}
