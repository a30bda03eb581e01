package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics groups the feed handler counters. A nil *Metrics is valid and
// records nothing, so handlers built without a registry need no checks.
type Metrics struct {
	Messages      *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec
	UnknownOrders *prometheus.CounterVec
	Events        *prometheus.CounterVec
	BooksDefined  *prometheus.CounterVec
	SequenceGaps  prometheus.Counter
}

// New creates the collectors and registers them into reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "heimdall_messages_total", Help: "Decoded messages by protocol and message type"},
			[]string{"protocol", "type"},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "heimdall_decode_errors_total", Help: "Packets rejected by the decoder"},
			[]string{"protocol"},
		),
		UnknownOrders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "heimdall_unknown_orders_total", Help: "Order references to ids not in any book"},
			[]string{"protocol", "op"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "heimdall_events_total", Help: "Events emitted by kind"},
			[]string{"kind"},
		),
		BooksDefined: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "heimdall_books_defined_total", Help: "Order books created for subscribed symbols"},
			[]string{"protocol"},
		),
		SequenceGaps: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "heimdall_sequence_gaps_total", Help: "MoldUDP and MoldUDP64 sequence gaps"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.Messages, m.DecodeErrors, m.UnknownOrders, m.Events, m.BooksDefined, m.SequenceGaps,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("metric registration failed")
		}
	}
	return m
}

// NewRegistry returns a registry with the process and Go runtime collectors
// plus a fresh set of feed handler metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := New(reg)
	log.Info().Msg("prometheus metrics initialized")
	return reg, m
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Message(protocol string, tag byte) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(protocol, string(tag)).Inc()
}

func (m *Metrics) DecodeError(protocol string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(protocol).Inc()
}

func (m *Metrics) UnknownOrder(protocol, op string) {
	if m == nil {
		return
	}
	m.UnknownOrders.WithLabelValues(protocol, op).Inc()
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) BookDefined(protocol string) {
	if m == nil {
		return
	}
	m.BooksDefined.WithLabelValues(protocol).Inc()
}

func (m *Metrics) SequenceGap() {
	if m == nil {
		return
	}
	m.SequenceGaps.Inc()
}
