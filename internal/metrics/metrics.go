package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bitaek_watch"

// Failure kinds.
const (
	FailureRPC       = "rpc"
	FailureTransport = "transport"
)

// Drop reasons.
const (
	DropLate  = "late"
	DropStale = "stale"
)

// Metrics holds the polling store collectors. A nil *Metrics records nothing.
type Metrics struct {
	polls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	updates  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll requests issued.",
		}, []string{"method"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Poll requests that did not produce a value.",
		}, []string{"method", "kind"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Held-value replacements delivered to subscribers.",
		}, []string{"method"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_responses_total",
			Help:      "Successful responses that were not applied.",
		}, []string{"method", "reason"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Poll requests awaiting a response.",
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Round-trip time of poll requests.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{m.polls, m.failures, m.updates, m.dropped, m.inFlight, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// PollStarted records a request leaving for method.
func (m *Metrics) PollStarted(method string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(method).Inc()
	m.inFlight.WithLabelValues(method).Inc()
}

// PollFinished records the end of a request started with PollStarted.
func (m *Metrics) PollFinished(method string, took time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(method).Dec()
	m.duration.WithLabelValues(method).Observe(took.Seconds())
}

// Failure records a failed poll of the given kind.
func (m *Metrics) Failure(method, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(method, kind).Inc()
}

// Updated records a value delivered to subscribers.
func (m *Metrics) Updated(method string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(method).Inc()
}

// Dropped records a response that was discarded.
func (m *Metrics) Dropped(method, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(method, reason).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
