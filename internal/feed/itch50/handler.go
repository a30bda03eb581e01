package itch50

import (
	"fmt"
	"time"

	"heimdall/internal/common"
	"heimdall/internal/feed"
	"heimdall/internal/net"

	"github.com/rs/zerolog/log"
)

const (
	Protocol      = "itch50"
	SymbolLen     = 8
	PriceDecimals = 4
)

var (
	rthStart = uint64((9*time.Hour + 30*time.Minute).Nanoseconds())
	rthEnd   = uint64((16 * time.Hour).Nanoseconds())
)

// Handler decodes NASDAQ TotalView-ITCH 5.0. Books are keyed by stock
// locate and timestamps are nanoseconds since midnight.
type Handler struct {
	*feed.Base
}

func New(opts ...feed.Option) *Handler {
	o := feed.NewOptions(opts...)
	return &Handler{Base: feed.NewBase(Protocol, SymbolLen, o.Metrics)}
}

func (h *Handler) IsRTHTimestamp(timestamp uint64) bool {
	return timestamp >= rthStart && timestamp < rthEnd
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
	case 'S':
		h.systemEvent(parseSystemEvent(msg))
	case 'R':
		h.stockDirectory(parseStockDirectory(msg))
	case 'H':
		err = h.tradingAction(parseStockTradingAction(msg))
	case 'A', 'F':
		err = h.addOrder(parseAddOrder(msg))
	case 'E', 'C':
		h.orderExecuted(parseOrderExecuted(msg))
	case 'X':
		h.orderCancel(parseOrderCancel(msg))
	case 'D':
		h.orderDelete(parseOrderDelete(msg))
	case 'U':
		err = h.orderReplace(parseOrderReplace(msg))
	case 'P':
		h.trade(parseTrade(msg))
	case 'Q':
		h.crossTrade(parseCrossTrade(msg))
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (h *Handler) systemEvent(m SystemEvent) {
	switch m.EventCode {
	case 'Q':
		h.Emit(feed.SystemEvent(m.Timestamp, common.Opened))
	case 'M':
		h.Emit(feed.SystemEvent(m.Timestamp, common.Closed))
	default:
		log.Debug().
			Str("event_code", string(m.EventCode)).
			Uint64("timestamp", m.Timestamp).
			Msg("system event")
	}
}

func (h *Handler) stockDirectory(m StockDirectory) {
	h.Define(uint64(m.StockLocate), m.Stock, m.Timestamp, PriceDecimals)
}

func (h *Handler) tradingAction(m StockTradingAction) error {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return nil
	}
	var state common.TradingState
	switch m.TradingState {
	case 'H':
		state = common.Halted
	case 'P':
		state = common.Paused
	case 'Q':
		state = common.QuotationOnly
	case 'T':
		state = common.Trading
	default:
		return fmt.Errorf("%w: %q", feed.ErrUnknownTradingState, m.TradingState)
	}
	ob.SetState(state)
	ob.SetStateName(m.Reason)
	return nil
}

func (h *Handler) addOrder(m AddOrder) error {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return nil
	}
	side, err := common.ParseSide(m.Side)
	if err != nil {
		return err
	}
	order := common.Order{
		ID:        m.OrderRef,
		Price:     uint64(m.Price),
		Quantity:  uint64(m.Shares),
		Side:      side,
		Timestamp: m.Timestamp,
	}
	if err := ob.Add(order); err != nil {
		return err
	}
	ob.SetTimestamp(m.Timestamp)
	h.Emit(feed.BookEvent(ob.Symbol(), m.Timestamp, ob))
	return nil
}

// orderExecuted prints the trade at the resting order's price for 'E' and
// at the execution price for 'C'.
func (h *Handler) orderExecuted(m OrderExecuted) {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return
	}
	exec := ob.Execute(m.OrderRef, uint64(m.Shares))
	if !exec.Valid {
		h.UnknownOrder("execute")
		return
	}
	ob.SetTimestamp(m.Timestamp)

	price := exec.Price
	if m.Type == 'C' {
		price = uint64(m.Price)
	}
	trade := common.Trade{
		Timestamp: m.Timestamp,
		Price:     price,
		Quantity:  uint64(m.Shares),
		Sign:      common.AggressorSign(exec.Side),
	}
	h.Emit(feed.BookTradeEvent(ob.Symbol(), m.Timestamp, ob, trade, feed.SweepMask(exec)))
}

func (h *Handler) orderCancel(m OrderCancel) {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return
	}
	if !ob.Cancel(m.OrderRef, uint64(m.Shares)) {
		h.UnknownOrder("cancel")
		return
	}
	ob.SetTimestamp(m.Timestamp)
	h.Emit(feed.BookEvent(ob.Symbol(), m.Timestamp, ob))
}

func (h *Handler) orderDelete(m OrderDelete) {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return
	}
	if !ob.Remove(m.OrderRef) {
		h.UnknownOrder("delete")
		return
	}
	ob.SetTimestamp(m.Timestamp)
	h.Emit(feed.BookEvent(ob.Symbol(), m.Timestamp, ob))
}

// orderReplace keeps the side of the original order, which the message does
// not carry.
func (h *Handler) orderReplace(m OrderReplace) error {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return nil
	}
	side := ob.Side(m.OriginalOrderRef)
	if side == common.SideUnknown {
		h.UnknownOrder("replace")
		return nil
	}
	order := common.Order{
		ID:        m.NewOrderRef,
		Price:     uint64(m.Price),
		Quantity:  uint64(m.Shares),
		Side:      side,
		Timestamp: m.Timestamp,
	}
	if err := ob.Replace(m.OriginalOrderRef, order); err != nil {
		return err
	}
	ob.SetTimestamp(m.Timestamp)
	h.Emit(feed.BookEvent(ob.Symbol(), m.Timestamp, ob))
	return nil
}

func (h *Handler) trade(m Trade) {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return
	}
	trade := common.Trade{
		Timestamp: m.Timestamp,
		Price:     uint64(m.Price),
		Quantity:  uint64(m.Shares),
		Sign:      common.NonDisplayable,
	}
	h.Emit(feed.TradeEvent(ob.Symbol(), m.Timestamp, ob, trade))
}

func (h *Handler) crossTrade(m CrossTrade) {
	ob, ok := h.Lookup(uint64(m.StockLocate))
	if !ok {
		return
	}
	trade := common.Trade{
		Timestamp: m.Timestamp,
		Price:     uint64(m.CrossPrice),
		Quantity:  m.Shares,
		Sign:      common.Crossing,
	}
	h.Emit(feed.TradeEvent(ob.Symbol(), m.Timestamp, ob, trade))
}
