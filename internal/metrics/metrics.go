// Package metrics exposes per-target trace counters.
package metrics

import (
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts events and commands per traced pid. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	reg      *prometheus.Registry
	events   *prometheus.CounterVec
	commands *prometheus.CounterVec
	nesting  *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		reg: reg,
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "calltap_events_total",
			Help: "Total number of events received from traced processes.",
		}, []string{"pid", "kind"}),
		commands: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "calltap_commands_total",
			Help: "Total number of commands sent to traced processes.",
		}, []string{"pid", "verb"}),
		nesting: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "calltap_nesting",
			Help: "Current call nesting depth of a traced process.",
		}, []string{"pid"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Event counts one received event.
func (m *Metrics) Event(pid int, kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(strconv.Itoa(pid), kind).Inc()
}

// Command counts one sent command.
func (m *Metrics) Command(pid int, verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(strconv.Itoa(pid), verb).Inc()
}

// Nesting records the current nesting depth.
func (m *Metrics) Nesting(pid, depth int) {
	if m == nil {
		return
	}
	m.nesting.WithLabelValues(strconv.Itoa(pid)).Set(float64(depth))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	return mux
}

// Serve serves Handler on ln until ln is closed.
func (m *Metrics) Serve(ln net.Listener) error {
	return http.Serve(ln, m.Handler())
}
