package feed

import (
	"errors"

	"heimdall/internal/metrics"
)

var (
	ErrUnknownMessageType  = errors.New("unknown message type")
	ErrUnknownTradingState = errors.New("unknown trading state")
	ErrSymbolTooLong       = errors.New("symbol too long")
)

// Session is the contract every protocol exposes to its callers. All methods
// must be called from the goroutine that owns the session; see Pump and
// Dispatcher for driving a session from a run loop.
type Session interface {
	// IsRTHTimestamp reports whether a message timestamp falls within
	// regular trading hours for the venue.
	IsRTHTimestamp(timestamp uint64) bool
	// Subscribe marks a symbol as of interest. Books are only built for
	// subscribed symbols; maxOrders sizes the order index.
	Subscribe(symbol string, maxOrders int) error
	// RegisterCallback sets the single sink for emitted events.
	RegisterCallback(cb Callback)
	// ProcessPacket decodes one unit from the start of buf and returns the
	// number of bytes consumed. Zero means the session has ended.
	ProcessPacket(buf []byte) (int, error)
}

// LengthPrefixed is implemented by sessions whose ProcessPacket expects a
// stream record together with its 2-byte length prefix.
type LengthPrefixed interface {
	LengthPrefixed() bool
}

type Options struct {
	Metrics       *metrics.Metrics
	PriceDecimals uint16
}

type Option func(*Options)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithPriceDecimals sets the implied decimals for protocols whose wire format
// does not carry them.
func WithPriceDecimals(decimals uint16) Option {
	return func(o *Options) { o.PriceDecimals = decimals }
}

func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
