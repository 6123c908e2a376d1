package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ringchat"

// Registry holds all application metrics.
//
// Every helper method is safe on a nil *Registry so components can run
// without metrics in tests.
type Registry struct {
	// Chat metrics
	Broadcasts   CounterVec
	SendFailures Counter
	Logins       CounterVec

	// Election metrics
	Elections  CounterVec
	Heartbeats CounterVec

	// Request metrics
	RequestsTotal   CounterVec
	RequestDuration HistogramVec

	prom *prometheus.Registry
}

// Counter is a cumulative metric that only increases.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Histogram samples observations and counts them in buckets.
type Histogram interface {
	Observe(float64)
}

// HistogramVec is a Histogram with labels.
type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
}

type counterVec struct{ *prometheus.CounterVec }

func (c counterVec) WithLabelValues(lvs ...string) Counter {
	return c.CounterVec.WithLabelValues(lvs...)
}

type histogramVec struct{ *prometheus.HistogramVec }

func (h histogramVec) WithLabelValues(lvs ...string) Histogram {
	return h.HistogramVec.WithLabelValues(lvs...)
}

// NewRegistry creates a registry with all ringchat metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "broadcasts_total",
		Help:      "Broadcasts sent, by whether the leader stamped them",
	}, []string{"coordinated"})

	sendFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "send_failures_total",
		Help:      "Deliveries to a client session that failed",
	})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "logins_total",
		Help:      "Login attempts by result",
	}, []string{"result"})

	elections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "election",
		Name:      "events_total",
		Help:      "Election events by kind",
	}, []string{"event"})

	heartbeats := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "election",
		Name:      "heartbeats_total",
		Help:      "Leader heartbeats by result",
	}, []string{"result"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "RPC requests by procedure and code",
	}, []string{"procedure", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "RPC latency by procedure",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})

	prom := prometheus.NewRegistry()
	prom.MustRegister(
		broadcasts,
		sendFailures,
		logins,
		elections,
		heartbeats,
		requests,
		duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		Broadcasts:      counterVec{broadcasts},
		SendFailures:    sendFailures,
		Logins:          counterVec{logins},
		Elections:       counterVec{elections},
		Heartbeats:      counterVec{heartbeats},
		RequestsTotal:   counterVec{requests},
		RequestDuration: histogramVec{duration},
		prom:            prom,
	}
}

// Register adds an extra collector, such as one built with NewCollector.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.prom.Register(c)
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{Registry: r.prom})
}

// ObserveBroadcast counts one broadcast.
func (r *Registry) ObserveBroadcast(coordinated bool) {
	if r == nil {
		return
	}
	label := "false"
	if coordinated {
		label = "true"
	}
	r.Broadcasts.WithLabelValues(label).Inc()
}

// ObserveSendFailure counts one failed client delivery.
func (r *Registry) ObserveSendFailure() {
	if r == nil {
		return
	}
	r.SendFailures.Inc()
}

// ObserveLogin counts a login attempt by result ("ok" or a failure reason).
func (r *Registry) ObserveLogin(result string) {
	if r == nil {
		return
	}
	r.Logins.WithLabelValues(result).Inc()
}

// ObserveElection counts an election event such as "started" or "elected".
func (r *Registry) ObserveElection(event string) {
	if r == nil {
		return
	}
	r.Elections.WithLabelValues(event).Inc()
}

// ObserveHeartbeats counts heartbeats sent, missed or received.
func (r *Registry) ObserveHeartbeats(result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.Heartbeats.WithLabelValues(result).Add(float64(n))
}

// ObserveRequest records one RPC.
func (r *Registry) ObserveRequest(procedure, code string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(procedure, code).Inc()
	r.RequestDuration.WithLabelValues(procedure).Observe(seconds)
}
