package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seirnet",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seirnet",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			// 1ms .. ~65s; a long /advance can run for many seconds.
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 17),
		},
		[]string{"op"},
	)

	InFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
		[]string{"op"},
	)

	// ---- Simulation ----
	Population = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "population",
			Help:      "Number of people in each SEIR compartment.",
		},
		[]string{"compartment"},
	)

	CumulativeInfections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "cumulative_infections",
			Help:      "Exposed people who have become infected since the simulator started.",
		},
	)

	Deaths = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "deaths",
			Help:      "Removals counted as deaths since the simulator started.",
		},
	)

	SimulatedDay = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "simulated_day",
			Help:      "Days simulated since the last reset.",
		},
	)

	DaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seirnet",
			Name:      "days_total",
			Help:      "Total number of simulated days processed.",
		},
	)

	DayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "seirnet",
			Name:      "day_duration_seconds",
			Help:      "Wall time spent simulating one day.",
			// 10us .. ~2.6s
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "seirnet",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		RequestsTotal, RequestDuration, InFlight,
		Population, CumulativeInfections, Deaths, SimulatedDay, DaysTotal, DayDuration,
		buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ---- Middleware instrumentation ----

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
// Example:
//
//	mux.Handle("POST /advance", telemetry.Instrument("advance", http.HandlerFunc(n.Advance)))
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()

		InFlight.WithLabelValues(op).Inc()
		defer InFlight.WithLabelValues(op).Dec()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}
