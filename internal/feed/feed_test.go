package feed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"heimdall/internal/agent"
	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

// --- Setup & Helpers --------------------------------------------------------

var errBadTag = errors.New("bad tag")

// fakeSession understands three one-letter messages:
//
//	'a' <id>  add a one lot bid with order id <id> to AAA
//	'o'       market open
//	'c'       market close
type fakeSession struct {
	*Base
}

func newFakeSession(t *testing.T) *fakeSession {
	t.Helper()
	s := &fakeSession{Base: NewBase("fake", 8, nil)}
	require.NoError(t, s.Subscribe("AAA", 16))
	require.NoError(t, s.Subscribe("BBB", 16))
	require.NotNil(t, s.Define(1, "AAA     ", 0, 0))
	require.NotNil(t, s.Define(2, "BBB     ", 0, 0))
	return s
}

func (s *fakeSession) IsRTHTimestamp(uint64) bool { return true }

func (s *fakeSession) ProcessPacket(buf []byte) (int, error) {
	switch buf[0] {
	case 'a':
		ob, _ := s.Lookup(1)
		id := uint64(buf[1])
		if err := ob.Add(common.Order{ID: id, Price: 10, Quantity: 1, Side: common.Buy}); err != nil {
			return 0, err
		}
		ob.SetTimestamp(id)
		s.Emit(BookEvent(ob.Symbol(), id, ob))
		return 2, nil
	case 'o':
		s.Emit(SystemEvent(0, common.Opened))
		return 1, nil
	case 'c':
		s.Emit(SystemEvent(0, common.Closed))
		return 1, nil
	default:
		return 0, errBadTag
	}
}

func newLoop(t *testing.T, name string) *utils.RunLoop {
	t.Helper()
	tb := new(tomb.Tomb)
	loop := utils.NewRunLoop(tb, name)
	t.Cleanup(func() {
		tb.Kill(nil)
		_ = tb.Wait()
	})
	return loop
}

func record(payload ...byte) []byte {
	return append([]byte{0, byte(len(payload))}, payload...)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for delivery")
		var zero T
		return zero
	}
}

// --- Base -------------------------------------------------------------------

func TestPadSymbol(t *testing.T) {
	wire, err := PadSymbol("AAPL", 8)
	require.NoError(t, err)
	assert.Equal(t, "AAPL    ", wire)
	assert.Equal(t, "AAPL", TrimSymbol(wire))
	assert.Equal(t, "AAPL", TrimSymbol("AAPL\x00\x00"))

	_, err = PadSymbol("TOOLONGSYMBOL", 8)
	assert.ErrorIs(t, err, ErrSymbolTooLong)
}

func TestBase_DefineOnlySubscribed(t *testing.T) {
	b := NewBase("test", 8, nil)
	require.NoError(t, b.Subscribe("MSFT", 100))
	assert.ErrorIs(t, b.Subscribe("MUCHTOOLONG", 1), ErrSymbolTooLong)

	assert.Nil(t, b.Define(7, "IBM     ", 0, 4))
	_, ok := b.Lookup(7)
	assert.False(t, ok)

	ob := b.Define(9, "MSFT    ", 5, 4)
	require.NotNil(t, ob)
	assert.Equal(t, "MSFT", ob.Symbol())
	assert.Equal(t, 100, ob.MaxOrders())
	assert.Equal(t, uint16(4), ob.DecimalsForPrice())
	assert.Equal(t, uint64(5), ob.Timestamp())
	assert.False(t, ob.Proxied())

	found, ok := b.Lookup(9)
	require.True(t, ok)
	assert.Same(t, ob, found)
	found, ok = b.Book("MSFT")
	require.True(t, ok)
	assert.Same(t, ob, found)
}

func TestBase_ReusedIDReplacesBook(t *testing.T) {
	b := NewBase("test", 8, nil)
	require.NoError(t, b.Subscribe("A", 1))
	require.NoError(t, b.Subscribe("B", 1))

	b.Define(1, "A       ", 0, 0)
	b.Define(1, "B       ", 0, 0)
	ob, ok := b.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "B", ob.Symbol())
}

func TestBase_Emit(t *testing.T) {
	b := NewBase("test", 8, nil)
	assert.NotPanics(t, func() { b.Emit(SystemEvent(1, common.Opened)) })

	var got []*Event
	b.RegisterCallback(func(ev *Event) { got = append(got, ev) })
	b.Emit(SystemEvent(1, common.Closed))
	require.Len(t, got, 1)
	assert.True(t, got[0].Mask.Has(common.Closed))
}

// --- Event ------------------------------------------------------------------

func TestEvent_Constructors(t *testing.T) {
	ob := agent.Inline(book.New("X", 0, 0, 0))
	trade := common.Trade{Timestamp: 3, Price: 100, Quantity: 5, Sign: common.BuyerInitiated}

	ev := BookEvent("X", 1, ob)
	assert.Equal(t, common.OrderBookUpdate, ev.Mask)
	assert.Nil(t, ev.Trade)
	assert.Equal(t, "book", ev.Kind())

	ev = TradeEvent("X", 2, ob, trade)
	assert.Equal(t, common.TradeEvent, ev.Mask)
	assert.Equal(t, trade, *ev.Trade)

	ev = BookTradeEvent("X", 3, ob, trade, SweepMask(book.Execution{Valid: true}))
	assert.True(t, ev.Mask.Has(common.OrderBookUpdate))
	assert.True(t, ev.Mask.Has(common.TradeEvent))
	assert.True(t, ev.Mask.Has(common.Sweep))
	assert.Equal(t, "sweep", ev.Kind())

	ev = BookTradeEvent("X", 3, ob, trade, SweepMask(book.Execution{Valid: true, Remaining: 1}))
	assert.False(t, ev.Mask.Has(common.Sweep))

	ev = SystemEvent(4, common.Opened)
	assert.Empty(t, ev.Symbol)
	assert.Nil(t, ev.Book)
	assert.Equal(t, "opened", ev.Kind())
}

func TestEvent_ViaCopies(t *testing.T) {
	owner := newLoop(t, "owner")
	ob := agent.Inline(book.New("X", 0, 0, 0))
	ev := TradeEvent("X", 2, ob, common.Trade{Price: 1, Quantity: 1})

	posted := ev.Via(owner)
	assert.True(t, posted.Book.Proxied())
	assert.False(t, ev.Book.Proxied())
	posted.Trade.Price = 99
	assert.Equal(t, uint64(1), ev.Trade.Price)

	assert.Nil(t, SystemEvent(1, common.Closed).Via(owner).Book)
}

// --- Dispatcher -------------------------------------------------------------

func TestDispatcher_PerSymbolAndBroadcast(t *testing.T) {
	owner := newLoop(t, "owner")
	session := newFakeSession(t)
	d := NewDispatcher(session, owner)

	var calls []string
	d.Register("AAA", func(ev *Event) { calls = append(calls, "aaa-1:"+ev.Kind()) })
	d.Register("BBB", func(ev *Event) { calls = append(calls, "bbb:"+ev.Kind()) })
	d.Register("AAA", func(ev *Event) { calls = append(calls, "aaa-2:"+ev.Kind()) })

	err := NewPump(session, owner).RunBuffer(context.Background(), []byte{'a', 1, 'o'})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"aaa-1:book", "aaa-2:book",
		"aaa-1:opened", "bbb:opened", "aaa-2:opened",
	}, calls)
}

func TestDispatcher_Unregister(t *testing.T) {
	owner := newLoop(t, "owner")
	session := newFakeSession(t)
	d := NewDispatcher(session, owner)

	var first, second int
	id := d.Register("AAA", func(*Event) { first++ })
	d.Register("AAA", func(*Event) { second++ })

	require.NoError(t, NewPump(session, owner).RunBuffer(context.Background(), []byte{'a', 1}))
	assert.True(t, d.Unregister(id))
	assert.False(t, d.Unregister(id))
	require.NoError(t, NewPump(session, owner).RunBuffer(context.Background(), []byte{'a', 2, 'c'}))

	assert.Equal(t, 1, first)
	assert.Equal(t, 3, second)
}

// A consumer that reads the book after receiving the event for the k-th add
// sees at least k orders.
func TestDispatcher_ConsumerLoopSeesAtLeastEventVersion(t *testing.T) {
	owner := newLoop(t, "owner")
	consumer := newLoop(t, "consumer")
	session := newFakeSession(t)
	d := NewDispatcher(session, owner)

	type seen struct {
		ts      uint64
		orders  int
		proxied bool
	}
	ch := make(chan seen, 16)
	d.RegisterOn(consumer, "AAA", func(ev *Event) {
		ch <- seen{ts: ev.Timestamp, orders: ev.Book.OrderCount(), proxied: ev.Book.Proxied()}
	})

	buf := []byte{'a', 1, 'a', 2, 'a', 3, 'a', 4}
	require.NoError(t, NewPump(session, owner).RunBuffer(context.Background(), buf))

	for k := 1; k <= 4; k++ {
		s := receive(t, ch)
		assert.Equal(t, uint64(k), s.ts)
		assert.GreaterOrEqual(t, s.orders, k)
		assert.True(t, s.proxied)
	}
}

func TestDispatcher_OwnerLoopRegistrationRunsInline(t *testing.T) {
	owner := newLoop(t, "owner")
	session := newFakeSession(t)
	d := NewDispatcher(session, owner)

	type seen struct {
		orders  int
		proxied bool
	}
	ch := make(chan seen, 1)
	d.RegisterOn(owner, "AAA", func(ev *Event) {
		ch <- seen{orders: ev.Book.OrderCount(), proxied: ev.Book.Proxied()}
	})

	done := make(chan error, 1)
	go func() {
		done <- NewPump(session, owner).RunBuffer(context.Background(), []byte{'a', 1})
	}()

	s := receive(t, ch)
	assert.Equal(t, 1, s.orders)
	assert.False(t, s.proxied)
	require.NoError(t, receive(t, done))
}

// --- Pump -------------------------------------------------------------------

func TestPump_Run(t *testing.T) {
	owner := newLoop(t, "owner")
	session := newFakeSession(t)

	var kinds []string
	session.RegisterCallback(func(ev *Event) { kinds = append(kinds, ev.Kind()) })

	var input bytes.Buffer
	input.Write(record('a', 1))
	input.Write(record('o'))
	input.Write([]byte{0, 0})
	input.Write(record('a', 2))

	require.NoError(t, NewPump(session, owner).Run(context.Background(), &input))
	assert.Equal(t, []string{"book", "opened"}, kinds)
}

func TestPump_RunStopsAtEOF(t *testing.T) {
	owner := newLoop(t, "owner")
	session := newFakeSession(t)
	require.NoError(t, NewPump(session, owner).Run(context.Background(), bytes.NewReader(record('a', 1))))

	ob, _ := session.Lookup(1)
	assert.Equal(t, 1, ob.OrderCount())
}

func TestPump_Errors(t *testing.T) {
	owner := newLoop(t, "owner")
	session := newFakeSession(t)
	pump := NewPump(session, owner)

	err := pump.Run(context.Background(), bytes.NewReader(record('?')))
	assert.ErrorIs(t, err, errBadTag)

	err = pump.RunBuffer(context.Background(), []byte{'a', 1, '?'})
	assert.ErrorIs(t, err, errBadTag)

	err = pump.Run(context.Background(), bytes.NewReader([]byte{0, 5, 'a'}))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pump.RunBuffer(ctx, []byte{'a', 1}), context.Canceled)
}

func TestPump_StoppedOwner(t *testing.T) {
	tb := new(tomb.Tomb)
	owner := utils.NewRunLoop(tb, "owner")
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	err := NewPump(newFakeSession(t), owner).RunBuffer(context.Background(), []byte{'a', 1})
	assert.ErrorIs(t, err, utils.ErrLoopStopped)
}
