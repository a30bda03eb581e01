package feed

import (
	"fmt"
	"strings"

	"heimdall/internal/agent"
	"heimdall/internal/book"
	"heimdall/internal/metrics"
	"heimdall/internal/net"

	"github.com/rs/zerolog/log"
)

// Base is the state every protocol handler shares: the subscription set, the
// exchange book id -> book map and the event sink. It is owned by the
// goroutine that processes packets.
type Base struct {
	protocol string
	width    int
	metrics  *metrics.Metrics

	// Keyed by the symbol as it appears on the wire, padding included.
	symbols  map[string]int
	capacity int

	books    map[uint64]*agent.Agent
	callback Callback
}

func NewBase(protocol string, width int, m *metrics.Metrics) *Base {
	return &Base{
		protocol: protocol,
		width:    width,
		metrics:  m,
		symbols:  make(map[string]int),
		books:    make(map[uint64]*agent.Agent),
	}
}

func (b *Base) Protocol() string          { return b.protocol }
func (b *Base) Metrics() *metrics.Metrics { return b.metrics }

// PadSymbol right-pads symbol with spaces to the wire width.
func PadSymbol(symbol string, width int) (string, error) {
	if len(symbol) > width {
		return "", fmt.Errorf("%w: %q is longer than %d", ErrSymbolTooLong, symbol, width)
	}
	return symbol + strings.Repeat(" ", width-len(symbol)), nil
}

// TrimSymbol strips wire padding.
func TrimSymbol(wire string) string {
	return strings.TrimRight(wire, " \x00")
}

// Subscribe records symbol as of interest. Capacity hints of all
// subscriptions are summed to size the book map.
func (b *Base) Subscribe(symbol string, maxOrders int) error {
	_, err := b.SubscribeWire(symbol, maxOrders)
	return err
}

// SubscribeWire is Subscribe returning the padded wire form of symbol.
func (b *Base) SubscribeWire(symbol string, maxOrders int) (string, error) {
	wire, err := PadSymbol(symbol, b.width)
	if err != nil {
		return "", err
	}
	b.symbols[wire] = maxOrders

	b.capacity = 0
	for _, n := range b.symbols {
		b.capacity += n
	}
	// Maps cannot grow in place, so only an empty one is re-made.
	if len(b.books) == 0 {
		b.books = make(map[uint64]*agent.Agent, b.capacity)
	}
	return wire, nil
}

func (b *Base) Subscribed(wire string) bool {
	_, ok := b.symbols[wire]
	return ok
}

func (b *Base) RegisterCallback(cb Callback) {
	b.callback = cb
}

// Define creates the book for a directory message. Nothing is allocated for
// symbols that are not subscribed, in which case it returns nil. A reused id
// replaces the previous book.
func (b *Base) Define(id uint64, wire string, timestamp uint64, decimals uint16) *agent.Agent {
	maxOrders, ok := b.symbols[wire]
	if !ok {
		return nil
	}
	symbol := TrimSymbol(wire)
	if prev, ok := b.books[id]; ok {
		log.Info().
			Str("protocol", b.protocol).
			Uint64("book_id", id).
			Str("previous", prev.Symbol()).
			Str("symbol", symbol).
			Msg("order book id reused")
	}

	ob := agent.Inline(book.New(symbol, timestamp, decimals, maxOrders))
	b.books[id] = ob
	b.metrics.BookDefined(b.protocol)
	log.Debug().
		Str("protocol", b.protocol).
		Uint64("book_id", id).
		Str("symbol", symbol).
		Uint16("decimals", decimals).
		Msg("order book defined")
	return ob
}

// Lookup finds the book for an exchange book id. Messages for ids without a
// book are not subscribed and are skipped by the handlers.
func (b *Base) Lookup(id uint64) (*agent.Agent, bool) {
	ob, ok := b.books[id]
	return ob, ok
}

// Book finds a book by its unpadded symbol.
func (b *Base) Book(symbol string) (*agent.Agent, bool) {
	for _, ob := range b.books {
		if ob.Symbol() == symbol {
			return ob, true
		}
	}
	return nil, false
}

func (b *Base) Emit(ev *Event) {
	b.metrics.Event(ev.Kind())
	if b.callback != nil {
		b.callback(ev)
	}
}

// Message counts a decoded message.
func (b *Base) Message(tag byte) {
	b.metrics.Message(b.protocol, tag)
}

// UnknownOrder counts a reference to an order id no book knows.
func (b *Base) UnknownOrder(op string) {
	b.metrics.UnknownOrder(b.protocol, op)
}

// Decode checks that buf holds a whole message of the given width and counts
// it. Handlers call it before reading any field.
func (b *Base) Decode(buf []byte, tag byte, width int) (net.Fields, error) {
	msg, err := net.NewCursor(buf).Fields(width)
	if err != nil {
		return nil, fmt.Errorf("%s message %q: %w", b.protocol, tag, err)
	}
	b.Message(tag)
	return msg, nil
}
