package pmd

import (
	"fmt"
	"time"

	"heimdall/internal/agent"
	"heimdall/internal/common"
	"heimdall/internal/feed"
	"heimdall/internal/net"

	"github.com/rs/zerolog/log"
)

const Protocol = "pmd"

// Handler decodes Parity market data. PMD has no directory message: books
// are created when an instrument is subscribed and keyed by the instrument
// field read as a big-endian integer. Executions, cancels and deletes only
// carry the order number, so the handler remembers which book each order of
// a subscribed instrument rests in.
type Handler struct {
	*feed.Base
	decimals uint16
	seconds  uint64
	orders   map[uint64]uint64 // order number -> book id
}

func New(opts ...feed.Option) *Handler {
	o := feed.NewOptions(opts...)
	return &Handler{
		Base:     feed.NewBase(Protocol, InstrumentLen, o.Metrics),
		decimals: o.PriceDecimals,
		orders:   make(map[uint64]uint64),
	}
}

// Subscribe also defines the instrument's book.
func (h *Handler) Subscribe(symbol string, maxOrders int) error {
	wire, err := h.SubscribeWire(symbol, maxOrders)
	if err != nil {
		return err
	}
	id := instrumentID(wire)
	if _, ok := h.Lookup(id); !ok {
		h.Define(id, wire, h.timestamp(0), h.decimals)
	}
	return nil
}

func instrumentID(wire string) uint64 {
	return net.Fields(wire).U64(0)
}

// Parity runs around the clock.
func (h *Handler) IsRTHTimestamp(uint64) bool {
	return true
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
	case 'V':
		log.Debug().Uint32("version", parseVersion(msg).Version).Msg("pmd version")
	case 'S':
		h.seconds = uint64(parseSeconds(msg).Second)
	case 'A':
		err = h.orderAdded(parseOrderAdded(msg))
	case 'E':
		h.orderExecuted(parseOrderExecuted(msg))
	case 'X':
		h.orderCanceled(parseOrderCanceled(msg))
	case 'D':
		h.orderDeleted(parseOrderDeleted(msg))
	case 'B':
		m := parseBrokenTrade(msg)
		log.Debug().Uint32("match_number", m.MatchNumber).Msg("broken trade")
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

// book resolves the book an order rests in. Orders of instruments that are
// not subscribed are never recorded.
func (h *Handler) book(orderNumber uint64) (*agent.Agent, bool) {
	id, ok := h.orders[orderNumber]
	if !ok {
		return nil, false
	}
	return h.Lookup(id)
}

// forget drops the order mapping once the order has left the book.
func (h *Handler) forget(ob *agent.Agent, orderNumber uint64) {
	if _, ok := ob.Order(orderNumber); !ok {
		delete(h.orders, orderNumber)
	}
}

func (h *Handler) orderAdded(m OrderAdded) error {
	ob, ok := h.Lookup(m.InstrumentID)
	if !ok {
		return nil
	}
	side, err := common.ParseSide(m.Side)
	if err != nil {
		return err
	}
	ts := h.timestamp(m.Timestamp)
	order := common.Order{
		ID:        m.OrderNumber,
		Price:     uint64(m.Price),
		Quantity:  uint64(m.Quantity),
		Side:      side,
		Timestamp: ts,
	}
	if err := ob.Add(order); err != nil {
		return err
	}
	// Zero quantity orders never rest, so nothing will ever remove them.
	if _, ok := ob.Order(m.OrderNumber); ok {
		h.orders[m.OrderNumber] = m.InstrumentID
	}
	ob.SetTimestamp(ts)
	h.Emit(feed.BookEvent(ob.Symbol(), ts, ob))
	return nil
}

func (h *Handler) orderExecuted(m OrderExecuted) {
	ob, ok := h.book(m.OrderNumber)
	if !ok {
		return
	}
	exec := ob.Execute(m.OrderNumber, uint64(m.Quantity))
	if !exec.Valid {
		h.UnknownOrder("execute")
		return
	}
	h.forget(ob, m.OrderNumber)
	ts := h.timestamp(m.Timestamp)
	ob.SetTimestamp(ts)

	trade := common.Trade{
		Timestamp: ts,
		Price:     exec.Price,
		Quantity:  uint64(m.Quantity),
		Sign:      common.AggressorSign(exec.Side),
	}
	h.Emit(feed.BookTradeEvent(ob.Symbol(), ts, ob, trade, feed.SweepMask(exec)))
}

func (h *Handler) orderCanceled(m OrderCanceled) {
	ob, ok := h.book(m.OrderNumber)
	if !ok {
		return
	}
	if !ob.Cancel(m.OrderNumber, uint64(m.CanceledQuantity)) {
		h.UnknownOrder("cancel")
		return
	}
	h.forget(ob, m.OrderNumber)
	ts := h.timestamp(m.Timestamp)
	ob.SetTimestamp(ts)
	h.Emit(feed.BookEvent(ob.Symbol(), ts, ob))
}

func (h *Handler) orderDeleted(m OrderDeleted) {
	ob, ok := h.book(m.OrderNumber)
	if !ok {
		return
	}
	delete(h.orders, m.OrderNumber)
	if !ob.Remove(m.OrderNumber) {
		h.UnknownOrder("delete")
		return
	}
	ts := h.timestamp(m.Timestamp)
	ob.SetTimestamp(ts)
	h.Emit(feed.BookEvent(ob.Symbol(), ts, ob))
}
