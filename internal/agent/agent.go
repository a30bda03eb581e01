package agent

import (
	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/utils"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Agent is the only way to reach an OrderBook from outside its owner loop.
//
// With an owner loop every call is marshaled onto that loop and the caller
// blocks until the result is back, so calls are serialized with the owner's
// own mutations. Without one the call runs inline, which is what the owner
// itself uses. A proxied agent must never be called from its owner loop, the
// call would wait on the task that is making it.
type Agent struct {
	owner *utils.RunLoop
	ob    *book.OrderBook
}

func New(owner *utils.RunLoop, ob *book.OrderBook) *Agent {
	return &Agent{owner: owner, ob: ob}
}

// Inline returns an agent for use on the goroutine that owns ob.
func Inline(ob *book.OrderBook) *Agent {
	return New(nil, ob)
}

// Via returns an agent for the same book that goes through loop.
func (a *Agent) Via(loop *utils.RunLoop) *Agent {
	return New(loop, a.ob)
}

// Proxied reports whether calls are marshaled onto an owner loop.
func (a *Agent) Proxied() bool {
	return a.owner != nil
}

func call[T any](a *Agent, fn func(ob *book.OrderBook) T) T {
	if a.owner == nil {
		return fn(a.ob)
	}
	v, err := utils.Submit(a.owner, func() T { return fn(a.ob) })
	if err != nil {
		log.Error().
			Err(err).
			Str("loop", a.owner.Name()).
			Msg("order book call dropped")
	}
	return v
}

func do(a *Agent, fn func(ob *book.OrderBook)) {
	call(a, func(ob *book.OrderBook) struct{} {
		fn(ob)
		return struct{}{}
	})
}

// ---- Mutations ----

func (a *Agent) SetTimestamp(timestamp uint64) {
	do(a, func(ob *book.OrderBook) { ob.SetTimestamp(timestamp) })
}

func (a *Agent) SetState(state common.TradingState) {
	do(a, func(ob *book.OrderBook) { ob.SetState(state) })
}

func (a *Agent) SetStateName(name string) {
	do(a, func(ob *book.OrderBook) { ob.SetStateName(name) })
}

func (a *Agent) SetDecimalsForPrice(dec uint16) {
	do(a, func(ob *book.OrderBook) { ob.SetDecimalsForPrice(dec) })
}

func (a *Agent) Add(order common.Order) error {
	return call(a, func(ob *book.OrderBook) error { return ob.Add(order) })
}

func (a *Agent) Replace(oldID uint64, order common.Order) error {
	return call(a, func(ob *book.OrderBook) error { return ob.Replace(oldID, order) })
}

type replaceResult struct {
	known bool
	err   error
}

func (a *Agent) ReplaceOn(oldID uint64, order common.Order) (bool, error) {
	res := call(a, func(ob *book.OrderBook) replaceResult {
		known, err := ob.ReplaceOn(oldID, order)
		return replaceResult{known, err}
	})
	return res.known, res.err
}

func (a *Agent) Cancel(orderID, quantity uint64) bool {
	return call(a, func(ob *book.OrderBook) bool { return ob.Cancel(orderID, quantity) })
}

func (a *Agent) Execute(orderID, quantity uint64) book.Execution {
	return call(a, func(ob *book.OrderBook) book.Execution { return ob.Execute(orderID, quantity) })
}

func (a *Agent) ExecuteOn(side common.Side, orderID, quantity uint64) book.Execution {
	return call(a, func(ob *book.OrderBook) book.Execution { return ob.ExecuteOn(side, orderID, quantity) })
}

func (a *Agent) Remove(orderID uint64) bool {
	return call(a, func(ob *book.OrderBook) bool { return ob.Remove(orderID) })
}

func (a *Agent) RemoveOn(side common.Side, orderID uint64) bool {
	return call(a, func(ob *book.OrderBook) bool { return ob.RemoveOn(side, orderID) })
}

// ---- Queries ----

// Symbol never changes after construction, so it is read directly.
func (a *Agent) Symbol() string {
	return a.ob.Symbol()
}

// MaxOrders never changes after construction, so it is read directly.
func (a *Agent) MaxOrders() int {
	return a.ob.MaxOrders()
}

func (a *Agent) Timestamp() uint64 {
	return call(a, (*book.OrderBook).Timestamp)
}

func (a *Agent) State() common.TradingState {
	return call(a, (*book.OrderBook).State)
}

func (a *Agent) StateName() string {
	return call(a, (*book.OrderBook).StateName)
}

func (a *Agent) DecimalsForPrice() uint16 {
	return call(a, (*book.OrderBook).DecimalsForPrice)
}

func (a *Agent) Side(orderID uint64) common.Side {
	return call(a, func(ob *book.OrderBook) common.Side { return ob.Side(orderID) })
}

type orderLookup struct {
	order common.Order
	ok    bool
}

// Order returns a copy of a resting order.
func (a *Agent) Order(orderID uint64) (common.Order, bool) {
	res := call(a, func(ob *book.OrderBook) orderLookup {
		order, ok := ob.Order(orderID)
		return orderLookup{order, ok}
	})
	return res.order, res.ok
}

func (a *Agent) OrderOn(side common.Side, orderID uint64) (common.Order, bool) {
	res := call(a, func(ob *book.OrderBook) orderLookup {
		order, ok := ob.OrderOn(side, orderID)
		return orderLookup{order, ok}
	})
	return res.order, res.ok
}

func (a *Agent) BidLevels() int {
	return call(a, (*book.OrderBook).BidLevels)
}

func (a *Agent) AskLevels() int {
	return call(a, (*book.OrderBook).AskLevels)
}

func (a *Agent) OrderCount() int {
	return call(a, (*book.OrderBook).OrderCount)
}

func (a *Agent) BidPrice(n int) uint64 {
	return call(a, func(ob *book.OrderBook) uint64 { return ob.BidPrice(n) })
}

func (a *Agent) BidSize(n int) uint64 {
	return call(a, func(ob *book.OrderBook) uint64 { return ob.BidSize(n) })
}

func (a *Agent) BidLevel(n int) book.PriceLevel {
	return call(a, func(ob *book.OrderBook) book.PriceLevel { return ob.BidLevel(n) })
}

func (a *Agent) AskPrice(n int) uint64 {
	return call(a, func(ob *book.OrderBook) uint64 { return ob.AskPrice(n) })
}

func (a *Agent) AskSize(n int) uint64 {
	return call(a, func(ob *book.OrderBook) uint64 { return ob.AskSize(n) })
}

func (a *Agent) AskLevel(n int) book.PriceLevel {
	return call(a, func(ob *book.OrderBook) book.PriceLevel { return ob.AskLevel(n) })
}

func (a *Agent) Midprice(n int) uint64 {
	return call(a, func(ob *book.OrderBook) uint64 { return ob.Midprice(n) })
}

func (a *Agent) Levels(side common.Side) []book.PriceLevel {
	return call(a, func(ob *book.OrderBook) []book.PriceLevel { return ob.Levels(side) })
}

// Price normalizes a raw price with the book's current decimals.
func (a *Agent) Price(raw uint64) decimal.Decimal {
	return book.NormalizePrice(raw, a.DecimalsForPrice())
}
