package book

import (
	"math"

	"heimdall/internal/common"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

// PriceLevel is the aggregate resting quantity at one price on one side.
type PriceLevel struct {
	Price uint64
	Size  uint64
}

// Execution describes the outcome of executing against a resting order.
type Execution struct {
	Price     uint64      // Price of the executed order
	Side      common.Side // Side of the resting (executed) order
	Remaining uint64      // Quantity left on the price level after the execution
	Valid     bool        // False when the order was unknown and nothing happened
}

// Swept reports whether the execution exhausted its price level.
func (e Execution) Swept() bool {
	return e.Valid && e.Remaining == 0
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// orderKey indexes resting orders. Some venues reuse an id on the other side
// of the same book, so the side is part of the key.
type orderKey struct {
	id   uint64
	side common.Side
}

// OrderBook is a level-2 reconstruction of one instrument. Orders are indexed
// by id and side and aggregated into price levels; orders at the same price
// are not kept in arrival order.
//
// The plain id methods look the id up on the buy side first, then the sell
// side. They suit feeds whose ids are unique across sides. The *On methods
// take the side from the message.
//
// The book holds no locks. It must only be touched by the goroutine that owns
// it, other goroutines go through an agent.Agent.
type OrderBook struct {
	symbol    string
	stateName string
	timestamp uint64
	state     common.TradingState
	// A value of 256 means the instrument trades in 1/256 fractions.
	decimals  uint16
	maxOrders int

	orders map[orderKey]*common.Order

	// Orders reference their level through (side, price); there is no
	// pointer from an order to its level.
	bids *PriceLevels
	asks *PriceLevels
}

func New(symbol string, timestamp uint64, decimals uint16, maxOrders int) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	}, btree.Options{NoLocks: true})
	// Sorted least first.
	asks := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	}, btree.Options{NoLocks: true})

	return &OrderBook{
		symbol:    symbol,
		timestamp: timestamp,
		state:     common.Unknown,
		decimals:  decimals,
		maxOrders: maxOrders,
		orders:    make(map[orderKey]*common.Order, maxOrders),
		bids:      bids,
		asks:      asks,
	}
}

func (book *OrderBook) Symbol() string                     { return book.symbol }
func (book *OrderBook) Timestamp() uint64                  { return book.timestamp }
func (book *OrderBook) SetTimestamp(timestamp uint64)      { book.timestamp = timestamp }
func (book *OrderBook) State() common.TradingState         { return book.state }
func (book *OrderBook) SetState(state common.TradingState) { book.state = state }
func (book *OrderBook) StateName() string                  { return book.stateName }
func (book *OrderBook) SetStateName(name string)           { book.stateName = name }
func (book *OrderBook) DecimalsForPrice() uint16           { return book.decimals }
func (book *OrderBook) SetDecimalsForPrice(dec uint16)     { book.decimals = dec }
func (book *OrderBook) MaxOrders() int                     { return book.maxOrders }

// Add rests a new order on its side of the book. An order id that is already
// resting on that side is replaced: the old order's quantity leaves its level
// first so the level aggregates stay exact. The same id on the other side is
// a different order. Zero quantity orders carry no liquidity and are not
// indexed.
func (book *OrderBook) Add(order common.Order) error {
	levels, err := book.levels(order.Side)
	if err != nil {
		return err
	}
	if order.Quantity == 0 {
		return nil
	}

	key := orderKey{order.ID, order.Side}
	if resting, ok := book.orders[key]; ok {
		log.Warn().
			Str("symbol", book.symbol).
			Uint64("order_id", order.ID).
			Stringer("side", order.Side).
			Msg("duplicate order id, replacing resting order")
		book.reduce(resting, resting.Quantity)
	}

	level := lookupOrCreate(levels, order.Price)
	level.Size += order.Quantity
	book.orders[key] = &order
	return nil
}

// Replace removes the order with oldID and adds order in its place.
func (book *OrderBook) Replace(oldID uint64, order common.Order) error {
	book.Remove(oldID)
	return book.Add(order)
}

// ReplaceOn is Replace for an oldID resting on order's side. It reports
// whether the old order was known; an unknown one leaves the book untouched.
func (book *OrderBook) ReplaceOn(oldID uint64, order common.Order) (bool, error) {
	if _, err := book.levels(order.Side); err != nil {
		return false, err
	}
	if !book.RemoveOn(order.Side, oldID) {
		return false, nil
	}
	return true, book.Add(order)
}

// Cancel takes quantity off a resting order, removing it once nothing is left.
// It reports whether the order was known.
func (book *OrderBook) Cancel(orderID, quantity uint64) bool {
	order, ok := book.find(orderID, "cancel")
	if !ok {
		return false
	}
	book.reduce(order, quantity)
	return true
}

// Execute is Cancel for a trade: it returns what was executed and how much
// is left on the price level.
func (book *OrderBook) Execute(orderID, quantity uint64) Execution {
	order, ok := book.find(orderID, "execute")
	return book.execute(order, ok, quantity)
}

// ExecuteOn is Execute for the order resting on side.
func (book *OrderBook) ExecuteOn(side common.Side, orderID, quantity uint64) Execution {
	order, ok := book.findOn(side, orderID, "execute")
	return book.execute(order, ok, quantity)
}

func (book *OrderBook) execute(order *common.Order, ok bool, quantity uint64) Execution {
	if !ok {
		return Execution{}
	}
	price, side := order.Price, order.Side
	remaining := book.reduce(order, quantity)
	return Execution{
		Price:     price,
		Side:      side,
		Remaining: remaining,
		Valid:     true,
	}
}

// Remove deletes an order regardless of its remaining quantity.
func (book *OrderBook) Remove(orderID uint64) bool {
	order, ok := book.find(orderID, "remove")
	if !ok {
		return false
	}
	book.reduce(order, order.Quantity)
	return true
}

// RemoveOn is Remove for the order resting on side.
func (book *OrderBook) RemoveOn(side common.Side, orderID uint64) bool {
	order, ok := book.findOn(side, orderID, "remove")
	if !ok {
		return false
	}
	book.reduce(order, order.Quantity)
	return true
}

// Side returns the side of a resting order, or SideUnknown.
func (book *OrderBook) Side(orderID uint64) common.Side {
	order, ok := book.find(orderID, "side")
	if !ok {
		return common.SideUnknown
	}
	return order.Side
}

// Order returns a copy of a resting order.
func (book *OrderBook) Order(orderID uint64) (common.Order, bool) {
	order, ok := book.lookup(orderID)
	if !ok {
		return common.Order{}, false
	}
	return *order, true
}

// OrderOn returns a copy of the order resting on side.
func (book *OrderBook) OrderOn(side common.Side, orderID uint64) (common.Order, bool) {
	order, ok := book.orders[orderKey{orderID, side}]
	if !ok {
		return common.Order{}, false
	}
	return *order, true
}

func (book *OrderBook) BidLevels() int  { return book.bids.Len() }
func (book *OrderBook) AskLevels() int  { return book.asks.Len() }
func (book *OrderBook) OrderCount() int { return len(book.orders) }

// BidPrice returns the price at depth n (0 is best), or 0 past the book.
func (book *OrderBook) BidPrice(n int) uint64 {
	level, ok := levelAt(book.bids, n)
	if !ok {
		return 0
	}
	return level.Price
}

func (book *OrderBook) BidSize(n int) uint64 {
	return book.BidLevel(n).Size
}

func (book *OrderBook) BidLevel(n int) PriceLevel {
	level, ok := levelAt(book.bids, n)
	if !ok {
		return PriceLevel{}
	}
	return *level
}

// AskPrice returns the price at depth n (0 is best), or math.MaxUint64 past
// the book.
func (book *OrderBook) AskPrice(n int) uint64 {
	level, ok := levelAt(book.asks, n)
	if !ok {
		return math.MaxUint64
	}
	return level.Price
}

func (book *OrderBook) AskSize(n int) uint64 {
	return book.AskLevel(n).Size
}

func (book *OrderBook) AskLevel(n int) PriceLevel {
	level, ok := levelAt(book.asks, n)
	if !ok {
		return PriceLevel{}
	}
	return *level
}

// Midprice is (bid + ask) / 2 in unsigned integer arithmetic. With a side
// missing at depth n the sentinel prices take part in the sum as they are.
func (book *OrderBook) Midprice(n int) uint64 {
	return (book.BidPrice(n) + book.AskPrice(n)) / 2
}

// Levels returns a copy of one side's levels, best first.
func (book *OrderBook) Levels(side common.Side) []PriceLevel {
	levels, err := book.levels(side)
	if err != nil {
		return nil
	}
	out := make([]PriceLevel, 0, levels.Len())
	levels.Scan(func(level *PriceLevel) bool {
		out = append(out, *level)
		return true
	})
	return out
}

func (book *OrderBook) levels(side common.Side) (*PriceLevels, error) {
	switch side {
	case common.Buy:
		return book.bids, nil
	case common.Sell:
		return book.asks, nil
	default:
		return nil, common.ErrInvalidSide
	}
}

func (book *OrderBook) lookup(orderID uint64) (*common.Order, bool) {
	if order, ok := book.orders[orderKey{orderID, common.Buy}]; ok {
		return order, true
	}
	order, ok := book.orders[orderKey{orderID, common.Sell}]
	return order, ok
}

func (book *OrderBook) find(orderID uint64, op string) (*common.Order, bool) {
	order, ok := book.lookup(orderID)
	if !ok {
		book.unknown(orderID, common.SideUnknown, op)
	}
	return order, ok
}

func (book *OrderBook) findOn(side common.Side, orderID uint64, op string) (*common.Order, bool) {
	order, ok := book.orders[orderKey{orderID, side}]
	if !ok {
		book.unknown(orderID, side, op)
	}
	return order, ok
}

func (book *OrderBook) unknown(orderID uint64, side common.Side, op string) {
	log.Warn().
		Str("symbol", book.symbol).
		Uint64("order_id", orderID).
		Stringer("side", side).
		Str("op", op).
		Msg("unknown order id")
}

// reduce takes quantity off an indexed order and its level, dropping either
// once empty. Quantity is clamped to what the order has left. It returns the
// remaining size of the level.
func (book *OrderBook) reduce(order *common.Order, quantity uint64) uint64 {
	quantity = min(quantity, order.Quantity)
	levels, _ := book.levels(order.Side)

	var remaining uint64
	if level, ok := levels.GetMut(&PriceLevel{Price: order.Price}); ok {
		level.Size -= quantity
		remaining = level.Size
		if level.Size == 0 {
			levels.Delete(level)
		}
	}

	order.Quantity -= quantity
	if order.Quantity == 0 {
		delete(book.orders, orderKey{order.ID, order.Side})
	}
	return remaining
}

// lookupOrCreate uses a dummy level as the search key, as the comparators
// only look at prices.
func lookupOrCreate(levels *PriceLevels, price uint64) *PriceLevel {
	if level, ok := levels.GetMut(&PriceLevel{Price: price}); ok {
		return level
	}
	level := &PriceLevel{Price: price}
	levels.Set(level)
	return level
}

func levelAt(levels *PriceLevels, n int) (*PriceLevel, bool) {
	if n < 0 || n >= levels.Len() {
		return nil, false
	}
	return levels.GetAt(n)
}
