package feed

import (
	"fmt"

	"heimdall/internal/agent"
	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/utils"
)

// Event is what a feed handler emits for one processed message. Book is only
// usable on the goroutine the event was delivered on: inline on the owner
// loop, or proxied when the event was posted to a consumer loop.
type Event struct {
	Mask      common.EventMask
	Symbol    string
	Timestamp uint64
	Book      *agent.Agent
	Trade     *common.Trade
}

// Callback receives every event for the symbols it was registered for.
type Callback func(*Event)

func BookEvent(symbol string, timestamp uint64, ob *agent.Agent) *Event {
	return &Event{
		Mask:      common.OrderBookUpdate,
		Symbol:    symbol,
		Timestamp: timestamp,
		Book:      ob,
	}
}

func TradeEvent(symbol string, timestamp uint64, ob *agent.Agent, trade common.Trade) *Event {
	return &Event{
		Mask:      common.TradeEvent,
		Symbol:    symbol,
		Timestamp: timestamp,
		Book:      ob,
		Trade:     &trade,
	}
}

// BookTradeEvent is emitted by executions, which both change the book and
// print a trade. extra carries the sweep flag.
func BookTradeEvent(symbol string, timestamp uint64, ob *agent.Agent, trade common.Trade, extra common.EventMask) *Event {
	return &Event{
		Mask:      extra | common.OrderBookUpdate | common.TradeEvent,
		Symbol:    symbol,
		Timestamp: timestamp,
		Book:      ob,
		Trade:     &trade,
	}
}

// SystemEvent has no symbol and is delivered to every subscriber.
func SystemEvent(timestamp uint64, mask common.EventMask) *Event {
	return &Event{Mask: mask, Timestamp: timestamp}
}

// SweepMask flags an execution that emptied its price level.
func SweepMask(exec book.Execution) common.EventMask {
	if exec.Swept() {
		return common.Sweep
	}
	return 0
}

// Via returns a copy of the event whose book calls go through loop.
func (ev *Event) Via(loop *utils.RunLoop) *Event {
	out := *ev
	if ev.Book != nil {
		out.Book = ev.Book.Via(loop)
	}
	if ev.Trade != nil {
		trade := *ev.Trade
		out.Trade = &trade
	}
	return &out
}

// Kind names the most specific flag of the mask, used as a metric label.
func (ev *Event) Kind() string {
	switch {
	case ev.Mask.Has(common.Opened):
		return "opened"
	case ev.Mask.Has(common.Closed):
		return "closed"
	case ev.Mask.Has(common.Sweep):
		return "sweep"
	case ev.Mask.Has(common.TradeEvent):
		return "trade"
	case ev.Mask.Has(common.OrderBookUpdate):
		return "book"
	default:
		return "none"
	}
}

func (ev *Event) String() string {
	if ev.Trade != nil {
		return fmt.Sprintf("Event{kind=%s, symbol=%q, ts=%d, trade=%d@%d/%c}",
			ev.Kind(), ev.Symbol, ev.Timestamp, ev.Trade.Quantity, ev.Trade.Price, ev.Trade.Sign.Byte())
	}
	return fmt.Sprintf("Event{kind=%s, symbol=%q, ts=%d}", ev.Kind(), ev.Symbol, ev.Timestamp)
}
