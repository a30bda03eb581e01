package feed

import (
	"slices"
	"sync"

	"heimdall/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type registration struct {
	id     uuid.UUID
	symbol string
	loop   *utils.RunLoop
	cb     Callback
}

// Dispatcher fans the events of one session out to callbacks registered per
// symbol. Events without a symbol are broadcast to every registration.
//
// Inline registrations run on the owner loop while the event is dispatched.
// Registrations bound to a consumer loop get a copy of the event posted to
// that loop, with its book agent routed back through the owner.
type Dispatcher struct {
	session Session
	owner   *utils.RunLoop
	install sync.Once

	mu       sync.RWMutex
	all      []*registration
	bySymbol map[string][]*registration
}

func NewDispatcher(session Session, owner *utils.RunLoop) *Dispatcher {
	return &Dispatcher{
		session:  session,
		owner:    owner,
		bySymbol: make(map[string][]*registration),
	}
}

// Register delivers events for symbol to cb on the owner loop.
func (d *Dispatcher) Register(symbol string, cb Callback) uuid.UUID {
	return d.RegisterOn(nil, symbol, cb)
}

// RegisterOn delivers events for symbol to cb on loop. A nil loop or the
// owner loop itself means inline: a callback on the owner must get the inline
// agent, a proxied one would post onto the loop it is running on and wait
// forever.
func (d *Dispatcher) RegisterOn(loop *utils.RunLoop, symbol string, cb Callback) uuid.UUID {
	if loop == d.owner {
		loop = nil
	}

	// The first registration installs the upstream callback. Sessions are
	// owner-only, so this must happen before packets are processed.
	d.install.Do(func() {
		d.session.RegisterCallback(d.dispatch)
	})

	r := &registration{
		id:     uuid.New(),
		symbol: symbol,
		loop:   loop,
		cb:     cb,
	}

	d.mu.Lock()
	d.all = append(d.all, r)
	d.bySymbol[symbol] = append(d.bySymbol[symbol], r)
	d.mu.Unlock()

	log.Debug().
		Str("symbol", symbol).
		Str("registration", r.id.String()).
		Bool("inline", loop == nil).
		Msg("callback registered")
	return r.id
}

// Unregister stops delivery to a registration. Events already posted to a
// consumer loop are still delivered.
func (d *Dispatcher) Unregister(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.IndexFunc(d.all, func(r *registration) bool { return r.id == id })
	if i < 0 {
		return false
	}
	r := d.all[i]
	d.all = slices.Delete(d.all, i, i+1)

	regs := slices.DeleteFunc(d.bySymbol[r.symbol], func(r *registration) bool { return r.id == id })
	if len(regs) == 0 {
		delete(d.bySymbol, r.symbol)
	} else {
		d.bySymbol[r.symbol] = regs
	}
	return true
}

func (d *Dispatcher) targets(symbol string) []*registration {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Copied so callbacks can register and unregister while being called.
	if symbol == "" {
		return slices.Clone(d.all)
	}
	return slices.Clone(d.bySymbol[symbol])
}

func (d *Dispatcher) dispatch(ev *Event) {
	for _, r := range d.targets(ev.Symbol) {
		if r.loop == nil {
			r.cb(ev)
			continue
		}

		posted, cb := ev.Via(d.owner), r.cb
		if err := r.loop.Post(func() { cb(posted) }); err != nil {
			log.Warn().
				Err(err).
				Str("loop", r.loop.Name()).
				Str("symbol", ev.Symbol).
				Msg("event dropped")
		}
	}
}
