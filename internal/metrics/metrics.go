package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ivengine"

// Solve outcomes.
const (
	OutcomeConverged      = "converged"
	OutcomeNonConvergence = "non_convergence"
	OutcomeInvalid        = "invalid"
	OutcomeError          = "error"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	SolvesTotal     *prometheus.CounterVec
	SolveIterations *prometheus.HistogramVec
	SolveDuration   *prometheus.HistogramVec
	PricesTotal     *prometheus.CounterVec

	TableVersion prometheus.Gauge
	TableWrites  *prometheus.CounterVec

	FeedSubscribers prometheus.Gauge
	FeedDropped     prometheus.Counter
	WriterFlushes   prometheus.Counter
	WriterErrors    prometheus.Counter

	HTTPRequests *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
// A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		SolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "iv_solves_total", Help: "Implied volatility solves by option kind and outcome"},
			[]string{"kind", "outcome"},
		),
		SolveIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "iv_solve_iterations", Help: "Pricing evaluations after the initial guess",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 16, 32, 64}},
			[]string{"kind"},
		),
		SolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "iv_solve_duration_seconds", Help: "Implied volatility solve latency",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14)},
			[]string{"kind"},
		),
		PricesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "prices_total", Help: "Option prices computed by kind"},
			[]string{"kind"},
		),
		TableVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "cdf_table_version", Help: "Current probability table version"},
		),
		TableWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cdf_table_writes_total", Help: "Probability table writes by result"},
			[]string{"result"},
		),
		FeedSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "feed_subscribers", Help: "Active table change subscribers"},
		),
		FeedDropped: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "feed_dropped_total", Help: "Table changes dropped for slow subscribers"},
		),
		WriterFlushes: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "writer_flushes_total", Help: "Data point batches persisted"},
		),
		WriterErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "writer_errors_total", Help: "Data point batches that failed to persist"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route and status code"},
			[]string{"route", "code"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SolvesTotal, m.SolveIterations, m.SolveDuration, m.PricesTotal,
		m.TableVersion, m.TableWrites,
		m.FeedSubscribers, m.FeedDropped, m.WriterFlushes, m.WriterErrors,
		m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveSolve records one implied volatility solve.
func (m *Metrics) ObserveSolve(kind, outcome string, iterations uint32, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SolvesTotal.WithLabelValues(kind, outcome).Inc()
	m.SolveDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if outcome == OutcomeConverged {
		m.SolveIterations.WithLabelValues(kind).Observe(float64(iterations))
	}
}

// ObservePrice counts one computed price.
func (m *Metrics) ObservePrice(kind string) {
	if m == nil {
		return
	}
	m.PricesTotal.WithLabelValues(kind).Inc()
}

// ObserveTableWrite records a table write and the resulting version.
func (m *Metrics) ObserveTableWrite(result string, version uint64) {
	if m == nil {
		return
	}
	m.TableWrites.WithLabelValues(result).Inc()
	m.TableVersion.Set(float64(version))
}

// SetSubscribers sets the number of active feed subscribers.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.FeedSubscribers.Set(float64(n))
}

// ObserveDropped counts changes dropped for a slow subscriber.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.FeedDropped.Inc()
}

// ObserveFlush records a persistence flush.
func (m *Metrics) ObserveFlush(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriterErrors.Inc()
		return
	}
	m.WriterFlushes.Inc()
}

// ObserveRequest counts one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
