package itch50

import (
	"heimdall/internal/net"
)

// Message format constants. Every message starts with the same header.
const (
	HeaderLen = 1 + 2 + 2 + 6 // type, stock locate, tracking number, timestamp

	SystemEventLen            = HeaderLen + 1
	StockDirectoryLen         = HeaderLen + 8 + 1 + 1 + 4 + 1 + 1 + 2 + 1 + 1 + 1 + 1 + 1 + 4 + 1
	StockTradingActionLen     = HeaderLen + 8 + 1 + 1 + 4
	RegSHORestrictionLen      = HeaderLen + 8 + 1
	ParticipantPositionLen    = HeaderLen + 4 + 8 + 1 + 1 + 1
	MWCBDeclineLevelLen       = HeaderLen + 8 + 8 + 8
	MWCBStatusLen             = HeaderLen + 1
	IPOQuotingPeriodLen       = HeaderLen + 8 + 4 + 1 + 4
	LULDAuctionCollarLen      = HeaderLen + 8 + 4 + 4 + 4 + 4
	OperationalHaltLen        = HeaderLen + 8 + 1 + 1
	AddOrderLen               = HeaderLen + 8 + 1 + 4 + 8 + 4
	AddOrderMPIDLen           = AddOrderLen + 4
	OrderExecutedLen          = HeaderLen + 8 + 4 + 8
	OrderExecutedWithPriceLen = OrderExecutedLen + 1 + 4
	OrderCancelLen            = HeaderLen + 8 + 4
	OrderDeleteLen            = HeaderLen + 8
	OrderReplaceLen           = HeaderLen + 8 + 8 + 4 + 4
	TradeLen                  = HeaderLen + 8 + 1 + 4 + 8 + 4 + 8
	CrossTradeLen             = HeaderLen + 8 + 8 + 4 + 8 + 1
	BrokenTradeLen            = HeaderLen + 8
	NOIILen                   = HeaderLen + 8 + 8 + 1 + 8 + 4 + 4 + 4 + 1 + 1
	RPIILen                   = HeaderLen + 8 + 1
)

var messageLen = map[byte]int{
	'S': SystemEventLen,
	'R': StockDirectoryLen,
	'H': StockTradingActionLen,
	'Y': RegSHORestrictionLen,
	'L': ParticipantPositionLen,
	'V': MWCBDeclineLevelLen,
	'W': MWCBStatusLen,
	'K': IPOQuotingPeriodLen,
	'J': LULDAuctionCollarLen,
	'h': OperationalHaltLen,
	'A': AddOrderLen,
	'F': AddOrderMPIDLen,
	'E': OrderExecutedLen,
	'C': OrderExecutedWithPriceLen,
	'X': OrderCancelLen,
	'D': OrderDeleteLen,
	'U': OrderReplaceLen,
	'P': TradeLen,
	'Q': CrossTradeLen,
	'B': BrokenTradeLen,
	'I': NOIILen,
	'N': RPIILen,
}

// Header is common to all messages.
type Header struct {
	Type           byte   // 1 byte
	StockLocate    uint16 // 2 bytes
	TrackingNumber uint16 // 2 bytes
	Timestamp      uint64 // 6 bytes, nanoseconds since midnight
}

func parseHeader(msg net.Fields) Header {
	return Header{
		Type:           msg.U8(0),
		StockLocate:    msg.U16(1),
		TrackingNumber: msg.U16(3),
		Timestamp:      msg.U48(5),
	}
}

type SystemEvent struct {
	Header
	EventCode byte // 1 byte
}

func parseSystemEvent(msg net.Fields) SystemEvent {
	return SystemEvent{Header: parseHeader(msg), EventCode: msg.U8(11)}
}

type StockDirectory struct {
	Header
	Stock        string // 8 bytes, space padded
	RoundLotSize uint32 // 4 bytes
}

func parseStockDirectory(msg net.Fields) StockDirectory {
	return StockDirectory{
		Header:       parseHeader(msg),
		Stock:        msg.Raw(11, 8),
		RoundLotSize: msg.U32(21),
	}
}

type StockTradingAction struct {
	Header
	Stock        string // 8 bytes
	TradingState byte   // 1 byte
	Reason       string // 4 bytes
}

func parseStockTradingAction(msg net.Fields) StockTradingAction {
	return StockTradingAction{
		Header:       parseHeader(msg),
		Stock:        msg.Raw(11, 8),
		TradingState: msg.U8(19),
		Reason:       msg.Text(21, 4),
	}
}

// AddOrder covers both 'A' and 'F', which only differ in the attribution.
type AddOrder struct {
	Header
	OrderRef    uint64 // 8 bytes
	Side        byte   // 1 byte
	Shares      uint32 // 4 bytes
	Stock       string // 8 bytes
	Price       uint32 // 4 bytes
	Attribution string // 4 bytes, 'F' only
}

func parseAddOrder(msg net.Fields) AddOrder {
	m := AddOrder{
		Header:   parseHeader(msg),
		OrderRef: msg.U64(11),
		Side:     msg.U8(19),
		Shares:   msg.U32(20),
		Stock:    msg.Raw(24, 8),
		Price:    msg.U32(32),
	}
	if len(msg) >= AddOrderMPIDLen {
		m.Attribution = msg.Text(36, 4)
	}
	return m
}

// OrderExecuted covers 'E' and 'C'. Price is only set for 'C'.
type OrderExecuted struct {
	Header
	OrderRef    uint64 // 8 bytes
	Shares      uint32 // 4 bytes
	MatchNumber uint64 // 8 bytes
	Printable   byte   // 1 byte, 'C' only
	Price       uint32 // 4 bytes, 'C' only
}

func parseOrderExecuted(msg net.Fields) OrderExecuted {
	m := OrderExecuted{
		Header:      parseHeader(msg),
		OrderRef:    msg.U64(11),
		Shares:      msg.U32(19),
		MatchNumber: msg.U64(23),
	}
	if len(msg) >= OrderExecutedWithPriceLen {
		m.Printable = msg.U8(31)
		m.Price = msg.U32(32)
	}
	return m
}

type OrderCancel struct {
	Header
	OrderRef uint64 // 8 bytes
	Shares   uint32 // 4 bytes
}

func parseOrderCancel(msg net.Fields) OrderCancel {
	return OrderCancel{
		Header:   parseHeader(msg),
		OrderRef: msg.U64(11),
		Shares:   msg.U32(19),
	}
}

type OrderDelete struct {
	Header
	OrderRef uint64 // 8 bytes
}

func parseOrderDelete(msg net.Fields) OrderDelete {
	return OrderDelete{Header: parseHeader(msg), OrderRef: msg.U64(11)}
}

type OrderReplace struct {
	Header
	OriginalOrderRef uint64 // 8 bytes
	NewOrderRef      uint64 // 8 bytes
	Shares           uint32 // 4 bytes
	Price            uint32 // 4 bytes
}

func parseOrderReplace(msg net.Fields) OrderReplace {
	return OrderReplace{
		Header:           parseHeader(msg),
		OriginalOrderRef: msg.U64(11),
		NewOrderRef:      msg.U64(19),
		Shares:           msg.U32(27),
		Price:            msg.U32(31),
	}
}

// Trade is a match against a non-displayed order.
type Trade struct {
	Header
	OrderRef    uint64 // 8 bytes
	Side        byte   // 1 byte
	Shares      uint32 // 4 bytes
	Stock       string // 8 bytes
	Price       uint32 // 4 bytes
	MatchNumber uint64 // 8 bytes
}

func parseTrade(msg net.Fields) Trade {
	return Trade{
		Header:      parseHeader(msg),
		OrderRef:    msg.U64(11),
		Side:        msg.U8(19),
		Shares:      msg.U32(20),
		Stock:       msg.Raw(24, 8),
		Price:       msg.U32(32),
		MatchNumber: msg.U64(36),
	}
}

type CrossTrade struct {
	Header
	Shares      uint64 // 8 bytes
	Stock       string // 8 bytes
	CrossPrice  uint32 // 4 bytes
	MatchNumber uint64 // 8 bytes
	CrossType   byte   // 1 byte
}

func parseCrossTrade(msg net.Fields) CrossTrade {
	return CrossTrade{
		Header:      parseHeader(msg),
		Shares:      msg.U64(11),
		Stock:       msg.Raw(19, 8),
		CrossPrice:  msg.U32(27),
		MatchNumber: msg.U64(31),
		CrossType:   msg.U8(39),
	}
}
