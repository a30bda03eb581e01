package bist

import (
	"heimdall/internal/net"
)

// Message format constants. Apart from 'T', every message starts with the
// type and the nanosecond part of its timestamp.
const (
	HeaderLen = 1 + 4 // type, timestamp nanoseconds

	SecondsLen                = 1 + 4
	OrderBookDirectoryLen     = HeaderLen + 4 + 32 + 32 + 12 + 1 + 3 + 2 + 2 + 4 + 4 + 4 + 8 + 1 + 4 + 4 + 4 + 2 + 1
	CombinationLegLen         = HeaderLen + 4 + 4 + 1 + 4
	TickSizeLen               = HeaderLen + 4 + 8 + 4 + 4
	SystemEventLen            = HeaderLen + 1
	OrderBookStateLen         = HeaderLen + 4 + 20
	AddOrderLen               = HeaderLen + 8 + 4 + 1 + 4 + 8 + 4 + 2 + 1
	AddOrderMPIDLen           = AddOrderLen + 7
	OrderExecutedLen          = HeaderLen + 8 + 4 + 1 + 8 + 8 + 4 + 7 + 7
	OrderExecutedWithPriceLen = OrderExecutedLen + 4 + 1 + 1
	OrderReplaceLen           = HeaderLen + 8 + 4 + 1 + 4 + 8 + 4 + 2
	OrderDeleteLen            = HeaderLen + 8 + 4 + 1
	TradeLen                  = HeaderLen + 8 + 4 + 1 + 8 + 4 + 4 + 7 + 7 + 1 + 1
	EquilibriumPriceLen       = HeaderLen + 4 + 8 + 8 + 4 + 4 + 4 + 8 + 8

	SymbolLen    = 32
	StateNameLen = 20
)

var messageLen = map[byte]int{
	'T': SecondsLen,
	'R': OrderBookDirectoryLen,
	'M': CombinationLegLen,
	'L': TickSizeLen,
	'S': SystemEventLen,
	'O': OrderBookStateLen,
	'A': AddOrderLen,
	'F': AddOrderMPIDLen,
	'E': OrderExecutedLen,
	'C': OrderExecutedWithPriceLen,
	'U': OrderReplaceLen,
	'D': OrderDeleteLen,
	'P': TradeLen,
	'Z': EquilibriumPriceLen,
}

type Seconds struct {
	UTCSeconds uint32 // 4 bytes, unix time
}

func parseSeconds(msg net.Fields) Seconds {
	return Seconds{UTCSeconds: msg.U32(1)}
}

type OrderBookDirectory struct {
	Nanoseconds   uint32 // 4 bytes
	OrderBookID   uint32 // 4 bytes, may be reused once expired
	Symbol        string // 32 bytes
	LongName      string // 32 bytes
	ISIN          string // 12 bytes
	Currency      string // 3 bytes
	PriceDecimals uint16 // 2 bytes, 256 means 1/256 fractions
	RoundLotSize  uint32 // 4 bytes
}

func parseOrderBookDirectory(msg net.Fields) OrderBookDirectory {
	return OrderBookDirectory{
		Nanoseconds:   msg.U32(1),
		OrderBookID:   msg.U32(5),
		Symbol:        msg.Raw(9, SymbolLen),
		LongName:      msg.Text(41, 32),
		ISIN:          msg.Text(73, 12),
		Currency:      msg.Text(86, 3),
		PriceDecimals: msg.U16(89),
		RoundLotSize:  msg.U32(97),
	}
}

type SystemEvent struct {
	Nanoseconds uint32 // 4 bytes
	EventCode   byte   // 1 byte
}

func parseSystemEvent(msg net.Fields) SystemEvent {
	return SystemEvent{Nanoseconds: msg.U32(1), EventCode: msg.U8(5)}
}

type OrderBookState struct {
	Nanoseconds uint32 // 4 bytes
	OrderBookID uint32 // 4 bytes
	StateName   string // 20 bytes
}

func parseOrderBookState(msg net.Fields) OrderBookState {
	return OrderBookState{
		Nanoseconds: msg.U32(1),
		OrderBookID: msg.U32(5),
		StateName:   msg.Text(9, StateNameLen),
	}
}

// AddOrder covers 'A' and 'F'. Order ids are only unique per book and side.
type AddOrder struct {
	Nanoseconds       uint32 // 4 bytes
	OrderID           uint64 // 8 bytes
	OrderBookID       uint32 // 4 bytes
	Side              byte   // 1 byte
	OrderBookPosition uint32 // 4 bytes
	Quantity          uint64 // 8 bytes, 0 when undisclosed
	Price             uint32 // 4 bytes
	OrderAttributes   uint16 // 2 bytes
	LotType           uint8  // 1 byte
	ParticipantID     string // 7 bytes, 'F' only
}

func parseAddOrder(msg net.Fields) AddOrder {
	m := AddOrder{
		Nanoseconds:       msg.U32(1),
		OrderID:           msg.U64(5),
		OrderBookID:       msg.U32(13),
		Side:              msg.U8(17),
		OrderBookPosition: msg.U32(18),
		Quantity:          msg.U64(22),
		Price:             msg.U32(30),
		OrderAttributes:   msg.U16(34),
		LotType:           msg.U8(36),
	}
	if len(msg) >= AddOrderMPIDLen {
		m.ParticipantID = msg.Text(37, 7)
	}
	return m
}

// OrderExecuted covers 'E' and 'C'. The price and cross fields are only set
// for 'C'.
type OrderExecuted struct {
	Type             byte
	Nanoseconds      uint32 // 4 bytes
	OrderID          uint64 // 8 bytes
	OrderBookID      uint32 // 4 bytes
	Side             byte   // 1 byte
	ExecutedQuantity uint64 // 8 bytes
	MatchID          uint64 // 8 bytes
	ComboGroupID     uint32 // 4 bytes
	TradePrice       uint32 // 4 bytes
	OccurredAtCross  byte   // 1 byte
	Printable        byte   // 1 byte
}

func parseOrderExecuted(msg net.Fields) OrderExecuted {
	m := OrderExecuted{
		Type:             msg.U8(0),
		Nanoseconds:      msg.U32(1),
		OrderID:          msg.U64(5),
		OrderBookID:      msg.U32(13),
		Side:             msg.U8(17),
		ExecutedQuantity: msg.U64(18),
		MatchID:          msg.U64(26),
		ComboGroupID:     msg.U32(34),
	}
	if len(msg) >= OrderExecutedWithPriceLen {
		m.TradePrice = msg.U32(52)
		m.OccurredAtCross = msg.U8(56)
		m.Printable = msg.U8(57)
	}
	return m
}

type OrderReplace struct {
	Nanoseconds          uint32 // 4 bytes
	OrderID              uint64 // 8 bytes
	OrderBookID          uint32 // 4 bytes
	Side                 byte   // 1 byte
	NewOrderBookPosition uint32 // 4 bytes
	Quantity             uint64 // 8 bytes
	Price                uint32 // 4 bytes
	OrderAttributes      uint16 // 2 bytes
}

func parseOrderReplace(msg net.Fields) OrderReplace {
	return OrderReplace{
		Nanoseconds:          msg.U32(1),
		OrderID:              msg.U64(5),
		OrderBookID:          msg.U32(13),
		Side:                 msg.U8(17),
		NewOrderBookPosition: msg.U32(18),
		Quantity:             msg.U64(22),
		Price:                msg.U32(30),
		OrderAttributes:      msg.U16(34),
	}
}

type OrderDelete struct {
	Nanoseconds uint32 // 4 bytes
	OrderID     uint64 // 8 bytes
	OrderBookID uint32 // 4 bytes
	Side        byte   // 1 byte
}

func parseOrderDelete(msg net.Fields) OrderDelete {
	return OrderDelete{
		Nanoseconds: msg.U32(1),
		OrderID:     msg.U64(5),
		OrderBookID: msg.U32(13),
		Side:        msg.U8(17),
	}
}

// Trade is a match that did not go through the visible book.
type Trade struct {
	Nanoseconds     uint32 // 4 bytes
	MatchID         uint64 // 8 bytes
	ComboGroupID    uint32 // 4 bytes
	Side            byte   // 1 byte
	Quantity        uint64 // 8 bytes
	OrderBookID     uint32 // 4 bytes
	TradePrice      uint32 // 4 bytes
	Printable       byte   // 1 byte
	OccurredAtCross byte   // 1 byte
}

func parseTrade(msg net.Fields) Trade {
	return Trade{
		Nanoseconds:     msg.U32(1),
		MatchID:         msg.U64(5),
		ComboGroupID:    msg.U32(13),
		Side:            msg.U8(17),
		Quantity:        msg.U64(18),
		OrderBookID:     msg.U32(26),
		TradePrice:      msg.U32(30),
		Printable:       msg.U8(48),
		OccurredAtCross: msg.U8(49),
	}
}
