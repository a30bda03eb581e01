package bist

import (
	"fmt"
	"time"

	"heimdall/internal/common"
	"heimdall/internal/feed"
	"heimdall/internal/net"

	"github.com/rs/zerolog/log"
)

const Protocol = "itch-bist"

var (
	// Borsa Istanbul trades on UTC+3 all year.
	istanbulOffset = 3 * time.Hour
	rthStart       = 10 * time.Hour
	rthEnd         = 18 * time.Hour
)

// Handler decodes the Borsa Istanbul flavour of NASDAQ ITCH. Books are keyed
// by order book id. Timestamps are UTC nanoseconds: the 'T' message carries
// the seconds and every other message the nanoseconds within that second.
type Handler struct {
	*feed.Base
	seconds uint64
}

func New(opts ...feed.Option) *Handler {
	o := feed.NewOptions(opts...)
	return &Handler{Base: feed.NewBase(Protocol, SymbolLen, o.Metrics)}
}

// IsRTHTimestamp checks the Istanbul time of day of a UTC nanosecond
// timestamp against the continuous session.
func (h *Handler) IsRTHTimestamp(timestamp uint64) bool {
	local := (time.Duration(timestamp) + istanbulOffset) % (24 * time.Hour)
	return local >= rthStart && local < rthEnd
}

func (h *Handler) timestamp(nanoseconds uint32) uint64 {
	return h.seconds*uint64(time.Second) + uint64(nanoseconds)
}

func (h *Handler) ProcessPacket(buf []byte) (int, error) {
	tag, err := net.NewCursor(buf).Peek()
	if err != nil {
		return 0, err
	}
	size, ok := messageLen[tag]
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", feed.ErrUnknownMessageType, Protocol, tag)
	}
	msg, err := h.Decode(buf, tag, size)
	if err != nil {
		return 0, err
	}

	switch tag {
	case 'T':
		h.secondsMessage(parseSeconds(msg))
	case 'R':
		h.orderBookDirectory(parseOrderBookDirectory(msg))
	case 'S':
		h.systemEvent(parseSystemEvent(msg))
	case 'O':
		h.orderBookState(parseOrderBookState(msg))
	case 'A', 'F':
		err = h.addOrder(parseAddOrder(msg))
	case 'E', 'C':
		err = h.orderExecuted(parseOrderExecuted(msg))
	case 'U':
		err = h.orderReplace(parseOrderReplace(msg))
	case 'D':
		err = h.orderDelete(parseOrderDelete(msg))
	case 'P':
		h.trade(parseTrade(msg))
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (h *Handler) secondsMessage(m Seconds) {
	next := uint64(m.UTCSeconds)
	if next > h.seconds+10 {
		log.Debug().
			Time("utc", time.Unix(int64(next), 0).UTC()).
			Msg("working time")
	}
	h.seconds = next
}

func (h *Handler) orderBookDirectory(m OrderBookDirectory) {
	h.Define(uint64(m.OrderBookID), m.Symbol, h.timestamp(m.Nanoseconds), m.PriceDecimals)
}

func (h *Handler) systemEvent(m SystemEvent) {
	ts := h.timestamp(m.Nanoseconds)
	var mask common.EventMask
	switch m.EventCode {
	case 'O':
		mask = common.Opened
	case 'C':
		mask = common.Closed
	default:
		log.Debug().Str("event_code", string(m.EventCode)).Msg("system event")
		return
	}
	log.Info().
		Time("utc", time.Unix(0, int64(ts)).UTC()).
		Bool("open", mask == common.Opened).
		Msg("market session event")
	h.Emit(feed.SystemEvent(ts, mask))
}

func (h *Handler) orderBookState(m OrderBookState) {
	ob, ok := h.Lookup(uint64(m.OrderBookID))
	if !ok {
		return
	}
	ob.SetStateName(m.StateName)
}

func (h *Handler) addOrder(m AddOrder) error {
	ob, ok := h.Lookup(uint64(m.OrderBookID))
	if !ok {
		return nil
	}
	side, err := common.ParseSide(m.Side)
	if err != nil {
		return err
	}
	ts := h.timestamp(m.Nanoseconds)
	order := common.Order{
		ID:        m.OrderID,
		Price:     uint64(m.Price),
		Quantity:  m.Quantity,
		Side:      side,
		Timestamp: ts,
	}
	if err := ob.Add(order); err != nil {
		return err
	}
	ob.SetTimestamp(ts)
	h.Emit(feed.BookEvent(ob.Symbol(), ts, ob))
	return nil
}

// orderExecuted handles 'E' and 'C'. A 'C' that occurred at a cross is a
// trade print only; the book is updated by the messages around the cross.
//
// Order ids are reused across sides, so executions, replaces and deletes
// resolve the order on the side the message names.
func (h *Handler) orderExecuted(m OrderExecuted) error {
	ob, ok := h.Lookup(uint64(m.OrderBookID))
	if !ok {
		return nil
	}
	ts := h.timestamp(m.Nanoseconds)

	if m.Type == 'C' && m.OccurredAtCross == 'Y' {
		trade := common.Trade{
			Timestamp: ts,
			Price:     uint64(m.TradePrice),
			Quantity:  m.ExecutedQuantity,
			Sign:      common.Crossing,
		}
		h.Emit(feed.TradeEvent(ob.Symbol(), ts, ob, trade))
		return nil
	}

	side, err := common.ParseSide(m.Side)
	if err != nil {
		return err
	}
	exec := ob.ExecuteOn(side, m.OrderID, m.ExecutedQuantity)
	if !exec.Valid {
		h.UnknownOrder("execute")
		return nil
	}
	ob.SetTimestamp(ts)

	price := exec.Price
	if m.Type == 'C' {
		price = uint64(m.TradePrice)
	}
	trade := common.Trade{
		Timestamp: ts,
		Price:     price,
		Quantity:  m.ExecutedQuantity,
		Sign:      common.AggressorSign(exec.Side),
	}
	h.Emit(feed.BookTradeEvent(ob.Symbol(), ts, ob, trade, feed.SweepMask(exec)))
	return nil
}

// orderReplace keeps the order id; only price, quantity and queue position
// change.
func (h *Handler) orderReplace(m OrderReplace) error {
	ob, ok := h.Lookup(uint64(m.OrderBookID))
	if !ok {
		return nil
	}
	side, err := common.ParseSide(m.Side)
	if err != nil {
		return err
	}
	ts := h.timestamp(m.Nanoseconds)
	order := common.Order{
		ID:        m.OrderID,
		Price:     uint64(m.Price),
		Quantity:  m.Quantity,
		Side:      side,
		Timestamp: ts,
	}
	known, err := ob.ReplaceOn(m.OrderID, order)
	if err != nil {
		return err
	}
	if !known {
		h.UnknownOrder("replace")
		return nil
	}
	ob.SetTimestamp(ts)
	h.Emit(feed.BookEvent(ob.Symbol(), ts, ob))
	return nil
}

func (h *Handler) orderDelete(m OrderDelete) error {
	ob, ok := h.Lookup(uint64(m.OrderBookID))
	if !ok {
		return nil
	}
	side, err := common.ParseSide(m.Side)
	if err != nil {
		return err
	}
	if !ob.RemoveOn(side, m.OrderID) {
		h.UnknownOrder("delete")
		return nil
	}
	ts := h.timestamp(m.Nanoseconds)
	ob.SetTimestamp(ts)
	h.Emit(feed.BookEvent(ob.Symbol(), ts, ob))
	return nil
}

func (h *Handler) trade(m Trade) {
	ob, ok := h.Lookup(uint64(m.OrderBookID))
	if !ok {
		return
	}
	ts := h.timestamp(m.Nanoseconds)
	trade := common.Trade{
		Timestamp: ts,
		Price:     uint64(m.TradePrice),
		Quantity:  m.Quantity,
		Sign:      common.NonDisplayable,
	}
	h.Emit(feed.TradeEvent(ob.Symbol(), ts, ob, trade))
}
