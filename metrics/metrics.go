// Package metrics counts what happens to every journal line.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "journalgelf"

// Metrics is safe to use as a nil pointer, which disables counting.
type Metrics struct {
	lines           prometheus.Counter
	skipped         *prometheus.CounterVec
	sent            prometheus.Counter
	datagrams       prometheus.Counter
	datagramErrors  prometheus.Counter
	bytes           prometheus.Counter
	resolveFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Input lines read from the journal source.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records not sent, by reason.",
		}, []string{"reason"}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_sent_total",
			Help:      "Records handed to the output.",
		}),
		datagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "UDP datagrams written, chunks counted individually.",
		}),
		datagramErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagram_errors_total",
			Help:      "UDP datagrams that failed to send.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the network, chunk headers included.",
		}),
		resolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_failures_total",
			Help:      "Failed re-resolutions of the graylog address.",
		}),
	}
	reg.MustRegister(m.lines, m.skipped, m.sent, m.datagrams, m.datagramErrors, m.bytes, m.resolveFailures)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) LineRead() {
	if m != nil {
		m.lines.Inc()
	}
}

func (m *Metrics) Skipped(reason string) {
	if m != nil {
		m.skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *Metrics) DatagramSent(n int) {
	if m != nil {
		m.datagrams.Inc()
		m.bytes.Add(float64(n))
	}
}

func (m *Metrics) DatagramFailed() {
	if m != nil {
		m.datagramErrors.Inc()
	}
}

func (m *Metrics) ResolveFailed() {
	if m != nil {
		m.resolveFailures.Inc()
	}
}
