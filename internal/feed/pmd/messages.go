package pmd

import (
	"heimdall/internal/net"
)

// Message format constants. Every message but 'V' and 'S' starts with the
// type and the nanosecond part of its timestamp.
const (
	HeaderLen = 1 + 4 // type, timestamp nanoseconds

	VersionLen       = 1 + 4
	SecondsLen       = 1 + 4
	OrderAddedLen    = HeaderLen + 8 + 1 + InstrumentLen + 4 + 4
	OrderExecutedLen = HeaderLen + 8 + 4 + 4
	OrderCanceledLen = HeaderLen + 8 + 4
	OrderDeletedLen  = HeaderLen + 8
	BrokenTradeLen   = HeaderLen + 4

	InstrumentLen = 8
)

var messageLen = map[byte]int{
	'V': VersionLen,
	'S': SecondsLen,
	'A': OrderAddedLen,
	'E': OrderExecutedLen,
	'X': OrderCanceledLen,
	'D': OrderDeletedLen,
	'B': BrokenTradeLen,
}

type Version struct {
	Version uint32 // 4 bytes
}

func parseVersion(msg net.Fields) Version {
	return Version{Version: msg.U32(1)}
}

type Seconds struct {
	Second uint32 // 4 bytes
}

func parseSeconds(msg net.Fields) Seconds {
	return Seconds{Second: msg.U32(1)}
}

type OrderAdded struct {
	Timestamp    uint32 // 4 bytes
	OrderNumber  uint64 // 8 bytes
	Side         byte   // 1 byte
	Instrument   string // 8 bytes
	InstrumentID uint64 // same 8 bytes as a big-endian integer
	Quantity     uint32 // 4 bytes
	Price        uint32 // 4 bytes
}

func parseOrderAdded(msg net.Fields) OrderAdded {
	return OrderAdded{
		Timestamp:    msg.U32(1),
		OrderNumber:  msg.U64(5),
		Side:         msg.U8(13),
		Instrument:   msg.Raw(14, InstrumentLen),
		InstrumentID: msg.U64(14),
		Quantity:     msg.U32(22),
		Price:        msg.U32(26),
	}
}

type OrderExecuted struct {
	Timestamp   uint32 // 4 bytes
	OrderNumber uint64 // 8 bytes
	Quantity    uint32 // 4 bytes
	MatchNumber uint32 // 4 bytes
}

func parseOrderExecuted(msg net.Fields) OrderExecuted {
	return OrderExecuted{
		Timestamp:   msg.U32(1),
		OrderNumber: msg.U64(5),
		Quantity:    msg.U32(13),
		MatchNumber: msg.U32(17),
	}
}

type OrderCanceled struct {
	Timestamp        uint32 // 4 bytes
	OrderNumber      uint64 // 8 bytes
	CanceledQuantity uint32 // 4 bytes
}

func parseOrderCanceled(msg net.Fields) OrderCanceled {
	return OrderCanceled{
		Timestamp:        msg.U32(1),
		OrderNumber:      msg.U64(5),
		CanceledQuantity: msg.U32(13),
	}
}

type OrderDeleted struct {
	Timestamp   uint32 // 4 bytes
	OrderNumber uint64 // 8 bytes
}

func parseOrderDeleted(msg net.Fields) OrderDeleted {
	return OrderDeleted{Timestamp: msg.U32(1), OrderNumber: msg.U64(5)}
}

type BrokenTrade struct {
	Timestamp   uint32 // 4 bytes
	MatchNumber uint32 // 4 bytes
}

func parseBrokenTrade(msg net.Fields) BrokenTrade {
	return BrokenTrade{Timestamp: msg.U32(1), MatchNumber: msg.U32(5)}
}
