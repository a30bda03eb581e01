// Package tracker keeps running statistics for one symbol on a consumer run
// loop.
package tracker

import (
	"math"
	"time"

	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/feed"
	"heimdall/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Stats is a snapshot of a tracker. Prices are normalized with the book's
// price decimals.
type Stats struct {
	Symbol         string
	Quotes         uint64
	Trades         uint64
	MaxPriceLevels int
	MaxOrderCount  int
	Volume         uint64
	Notional       decimal.Decimal
	VWAP           decimal.Decimal
	High           decimal.Decimal
	Low            decimal.Decimal
	Bid            book.PriceLevel
	Ask            book.PriceLevel
	LastTimestamp  uint64
	Closed         bool
}

// Tracker counts quotes and trades for a symbol. Its state lives on its own
// loop; book reads go through the event's agent to the owner loop.
type Tracker struct {
	symbol     string
	loop       *utils.RunLoop
	dispatcher *feed.Dispatcher
	id         uuid.UUID
	rth        func(uint64) bool

	stats    Stats
	hasTrade bool
}

// New registers a tracker for symbol on loop. Top of book changes inside
// regular trading hours, as told by rth, are logged at debug level; a nil
// rth logs all of them.
func New(d *feed.Dispatcher, loop *utils.RunLoop, symbol string, rth func(uint64) bool) *Tracker {
	t := &Tracker{
		symbol:     symbol,
		loop:       loop,
		dispatcher: d,
		rth:        rth,
		stats:      Stats{Symbol: symbol},
	}
	t.id = d.RegisterOn(loop, symbol, t.onEvent)
	return t
}

func (t *Tracker) onEvent(ev *feed.Event) {
	if ev.Mask.Has(common.Closed) {
		t.stats.Closed = true
		t.summary()
		return
	}
	if ev.Book == nil {
		return
	}
	t.stats.LastTimestamp = ev.Timestamp

	if ev.Mask.Has(common.OrderBookUpdate) {
		t.quote(ev)
	}
	if ev.Mask.Has(common.TradeEvent) && ev.Trade != nil {
		t.trade(ev)
	}
}

func (t *Tracker) quote(ev *feed.Event) {
	ob := ev.Book
	t.stats.MaxPriceLevels = max(t.stats.MaxPriceLevels, ob.BidLevels(), ob.AskLevels())
	t.stats.MaxOrderCount = max(t.stats.MaxOrderCount, ob.OrderCount())
	t.stats.Quotes++

	bid, ask := ob.BidLevel(0), ob.AskLevel(0)
	if bid.Size == 0 || ask.Size == 0 || ask.Price == math.MaxUint64 {
		return
	}
	if bid == t.stats.Bid && ask == t.stats.Ask {
		return
	}
	t.stats.Bid, t.stats.Ask = bid, ask

	if t.rth != nil && !t.rth(ev.Timestamp) {
		return
	}
	decimals := ob.DecimalsForPrice()
	log.Debug().
		Str("symbol", ev.Symbol).
		Uint64("timestamp", ev.Timestamp).
		Uint64("bid_size", bid.Size).
		Stringer("bid", book.NormalizePrice(bid.Price, decimals)).
		Stringer("ask", book.NormalizePrice(ask.Price, decimals)).
		Uint64("ask_size", ask.Size).
		Bool("sweep", ev.Mask.Has(common.Sweep)).
		Msg("top of book")
}

func (t *Tracker) trade(ev *feed.Event) {
	price := ev.Book.Price(ev.Trade.Price)
	qty := ev.Trade.Quantity

	t.stats.Volume += qty
	t.stats.Notional = t.stats.Notional.Add(price.Mul(book.NormalizePrice(qty, 0)))
	if !t.hasTrade || price.GreaterThan(t.stats.High) {
		t.stats.High = price
	}
	if !t.hasTrade || price.LessThan(t.stats.Low) {
		t.stats.Low = price
	}
	t.hasTrade = true
	t.stats.Trades++
}

func (t *Tracker) snapshot() Stats {
	s := t.stats
	if s.Volume > 0 {
		s.VWAP = s.Notional.Div(book.NormalizePrice(s.Volume, 0))
	}
	return s
}

func (t *Tracker) summary() {
	s := t.snapshot()
	log.Info().
		Str("symbol", s.Symbol).
		Uint64("quotes", s.Quotes).
		Uint64("trades", s.Trades).
		Int("max_levels", s.MaxPriceLevels).
		Int("max_orders", s.MaxOrderCount).
		Uint64("volume", s.Volume).
		Stringer("notional", s.Notional).
		Stringer("vwap", s.VWAP.Round(3)).
		Stringer("high", s.High).
		Stringer("low", s.Low).
		Time("last", time.Unix(0, int64(s.LastTimestamp)).UTC()).
		Msg("session summary")
}

// Stats returns a snapshot taken on the tracker's loop, after every event
// already posted to it.
func (t *Tracker) Stats() (Stats, error) {
	return utils.Submit(t.loop, t.snapshot)
}

// Close stops delivery and logs the summary.
func (t *Tracker) Close() error {
	t.dispatcher.Unregister(t.id)
	return utils.Call(t.loop, t.summary)
}
